package persistence

import (
	"context"
	"database/sql"
	"time"

	"newshub/domain/model"
	"newshub/domain/repository"
	"newshub/infrastructure/logger"
)

const userColumnsMSSQL = `id, name, user_name, password, created_at, updated_at`

// UserRepositoryMSSQL is the SQL Server implementation of IUser, used when the
// service runs against Azure SQL instead of PostgreSQL.
type UserRepositoryMSSQL struct{ db *sql.DB }

func NewUserRepositoryMSSQL(db *sql.DB) repository.IUser { return &UserRepositoryMSSQL{db} }

func scanUserMSSQL(row *sql.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.UserName, &u.Password, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepositoryMSSQL) GetById(ctx context.Context, id int) (model.User, error) {
	u, err := scanUserMSSQL(r.db.QueryRowContext(ctx,
		`SELECT `+userColumnsMSSQL+` FROM dbo.[users] WHERE id = @p1`, id))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while scan user by id")
	}
	return u, err
}

func (r *UserRepositoryMSSQL) GetByUserName(ctx context.Context, userName string) (model.User, error) {
	u, err := scanUserMSSQL(r.db.QueryRowContext(ctx,
		`SELECT `+userColumnsMSSQL+` FROM dbo.[users] WHERE user_name = @p1`, userName))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while scan user by user_name")
	}
	return u, err
}

func (r *UserRepositoryMSSQL) CreateUser(ctx context.Context, user model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dbo.[users] (name, user_name, password, created_at, updated_at)
		 VALUES (@p1, @p2, @p3, @p4, @p4)`,
		user.Name, user.UserName, user.Password, time.Now().UTC())
	if err != nil {
		logger.GetLogger().WithFields(map[string]interface{}{
			"error":     err,
			"user_name": user.UserName,
		}).Error("Error while create user")
	}
	return err
}
