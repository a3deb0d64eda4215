package persistence

import (
	"fmt"
	"time"

	"newshub/domain/model"
	"newshub/infrastructure/configuration"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMySQLGorm opens the local MySQL database via gorm. Posts (generated
// platform content) live here; AutoMigrate keeps the schema current.
func NewMySQLGorm() (*gorm.DB, error) {
	cfg := configuration.C.Database.MySql

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := db.AutoMigrate(&model.Post{}); err != nil {
		return nil, err
	}
	return db, nil
}
