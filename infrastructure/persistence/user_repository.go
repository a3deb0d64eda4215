package persistence

import (
	"context"
	"database/sql"
	"time"

	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/logger"
)

type UserRepository struct{ db *sql.DB }

func NewUserRepository(db *sql.DB) repository.IUser { return &UserRepository{db: db} }

func (r *UserRepository) GetById(ctx context.Context, id int) (model.User, error) {
	var user model.User
	stmt, err := r.db.PrepareContext(ctx, `SELECT u.id, u.name, u.user_name, u.password, u.created_at, u.updated_at
	FROM public.user AS u
	WHERE u.id = $1`)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while prepare statement")
		return user, err
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, id)
	if err := row.Scan(&user.ID, &user.Name, &user.UserName, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while scan user by id")
		return user, err
	}
	return user, nil
}

func (r *UserRepository) GetByUserName(ctx context.Context, userName string) (model.User, error) {
	var user model.User
	stmt, err := r.db.PrepareContext(ctx, `SELECT u.id, u.name, u.user_name, u.password, u.created_at, u.updated_at
	FROM public.user AS u
	WHERE u.user_name = $1`)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while prepare statement")
		return user, err
	}
	defer stmt.Close()

	row := stmt.QueryRowContext(ctx, userName)
	if err := row.Scan(&user.ID, &user.Name, &user.UserName, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while scan user by user_name")
		return user, err
	}
	return user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user model.User) error {
	stmt, err := r.db.PrepareContext(ctx, `INSERT INTO public.user (name, user_name, password, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while prepare statement")
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	if _, err := stmt.ExecContext(ctx, user.Name, user.UserName, user.Password, now, now); err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"error":     err,
			"user_name": user.UserName,
		}).Error("Error while create user")
		return err
	}
	return nil
}
