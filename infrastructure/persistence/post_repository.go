package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"newshub/domain/model"
)

// PostRepository reads generated post content from the MySQL database via gorm.
type PostRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository { return &PostRepository{db: db} }

func (r *PostRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *PostRepository) GetForUser(ctx context.Context, postID int64, userID string) (*model.Post, error) {
	var post model.Post
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", postID, userID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}
