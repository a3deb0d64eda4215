package repository

import (
	"context"

	"newshub/domain/model"
)

// IPost reads generated post content. Content generation is upstream; this
// subsystem never writes content fields.
type IPost interface {
	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	GetForUser(ctx context.Context, postID int64, userID string) (*model.Post, error)
}
