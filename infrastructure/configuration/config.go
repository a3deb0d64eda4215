package configuration

import (
	"fmt"
	"os"
	"strconv"

	"newshub/infrastructure/logger"

	"github.com/spf13/viper"
)

type Config struct {
	App         App         `json:"app"`
	Database    Database    `json:"database"`
	RedisClient RedisClient `json:"redisClient"`
	Pubsub      Pubsub      `json:"pubsub"`
	ServiceBus  ServiceBus  `json:"serviceBus"`
	Publishing  Publishing  `json:"publishing"`
	OAuth       OAuth       `json:"oauth"`
	GoogleSheet GoogleSheet `json:"googleSheet"`
	Logger      Logger      `json:"logger"`
}

type App struct {
	Port        int    `json:"port"`
	SecretKey   string `json:"secretKey"`
	TLSEnabled  bool   `json:"tlsEnabled"`
	TLSCertFile string `json:"tlsCertFile"`
	TLSKeyFile  string `json:"tlsKeyFile"`
}

type Database struct {
	Psql  Db `json:"psql"`
	MySql Db `json:"mysql"`
	Mongo Db `json:"mongo"`
	Mssql Db `json:"mssql"`
}

type Db struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

type RedisClient struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	Username     string `json:"username"`
}

type Pubsub struct {
	ProjectID    string `json:"projectID"`
	OutcomeTopic string `json:"outcomeTopic"`
}

type ServiceBus struct {
	Namespace  string `json:"namespace"`
	AlertQueue string `json:"alertQueue"`
}

// Publishing controls the publish orchestration subsystem.
type Publishing struct {
	Platforms          []string `json:"platforms"`
	RateLimitMax       int      `json:"rateLimitMax"`
	RateLimitWindowSec int      `json:"rateLimitWindowSec"`
	RetryBatchSize     int      `json:"retryBatchSize"`
	RetryIntervalSec   int      `json:"retryIntervalSec"`
}

// OAuth holds third-party platform OAuth client credentials used for token
// refresh before publishing.
type OAuth struct {
	Twitter   OAuthClient `json:"twitter"`
	LinkedIn  OAuthClient `json:"linkedin"`
	Instagram OAuthClient `json:"instagram"`
	Threads   OAuthClient `json:"threads"`
}

type OAuthClient struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectURI"`
	TokenURL     string `json:"tokenURL"`
}

type GoogleSheet struct {
	SpreadsheetId   string `json:"spreadsheetId"`
	SpreadsheetName string `json:"spreadsheetName"`
}

type Logger struct {
	Format string `json:"format"`
}

var C Config

func init() {
	LoadConfig()
	initDatabase(&C)
	initApp(&C)
	initPublishing(&C)
}

func LoadConfig() {
	name := getConfig()
	viper.SetConfigName(name)
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../")
	viper.AddConfigPath("../../")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.GetLogger().Warn("Config file not found")
		} else {
			logger.GetLogger().WithField("error", err).Error("Error reading config file")
		}
	}

	logger.GetLogger().WithField("config", name).Info("Config set up successfully")
	if err := viper.Unmarshal(&C); err != nil {
		logger.GetLogger().WithField("error", err).Error("Viper unable to decode into struct")
	}
}

func getConfig() string {
	name := "config"
	env := os.Getenv("ENV")
	if env != "" {
		name = fmt.Sprintf("%s-%s", name, env)
	}
	return name
}

func initDatabase(C *Config) {
	if C.Database.Psql.Name == "" {
		C.Database.Psql.Name = os.Getenv("DB_NAME")
	}
	if C.Database.Psql.Host == "" {
		C.Database.Psql.Host = os.Getenv("DB_HOST")
	}
	if C.Database.Psql.User == "" {
		C.Database.Psql.User = os.Getenv("DB_USER")
	}
	if C.Database.Psql.Password == "" {
		C.Database.Psql.Password = os.Getenv("DB_PASSWORD")
	}
	if C.Database.Psql.Port == "" {
		C.Database.Psql.Port = os.Getenv("DB_PORT")
	}

	// Optional MSSQL config via environment variables (Azure SQL in production)
	if C.Database.Mssql.Host == "" {
		C.Database.Mssql.Host = os.Getenv("MSSQL_HOST")
	}
	if C.Database.Mssql.Port == "" {
		C.Database.Mssql.Port = os.Getenv("MSSQL_PORT")
	}
	if C.Database.Mssql.Name == "" {
		C.Database.Mssql.Name = os.Getenv("MSSQL_NAME")
	}
	if C.Database.Mssql.User == "" {
		C.Database.Mssql.User = os.Getenv("MSSQL_USER")
	}
	if C.Database.Mssql.Password == "" {
		C.Database.Mssql.Password = os.Getenv("MSSQL_PASSWORD")
	}

	if C.RedisClient.Host == "" {
		C.RedisClient.Host = os.Getenv("REDIS_HOST")
	}
	if C.RedisClient.Port == "" {
		C.RedisClient.Port = os.Getenv("REDIS_PORT")
	}
}

func initApp(C *Config) {
	if C.App.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			if port, err := strconv.Atoi(p); err == nil {
				C.App.Port = port
			}
		}
		if C.App.Port == 0 {
			C.App.Port = 8080
		}
	}
	if C.App.SecretKey == "" {
		C.App.SecretKey = os.Getenv("SECRET_KEY")
	}
}

func initPublishing(C *Config) {
	if len(C.Publishing.Platforms) == 0 {
		C.Publishing.Platforms = []string{"twitter", "linkedin", "instagram", "threads"}
	}
	if C.Publishing.RateLimitMax == 0 {
		C.Publishing.RateLimitMax = 100
	}
	if C.Publishing.RateLimitWindowSec == 0 {
		C.Publishing.RateLimitWindowSec = 3600
	}
	if C.Publishing.RetryBatchSize == 0 {
		C.Publishing.RetryBatchSize = 10
	}
	if C.Publishing.RetryIntervalSec == 0 {
		C.Publishing.RetryIntervalSec = 30
	}
}
