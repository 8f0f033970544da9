package config

import (
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	MigrationsPath string
	AllowedOrigins []string

	// RedisAddr is optional; when empty the token cache is disabled and
	// every lookup goes to the database.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	// FileBaseURL is the public gateway prefix file URLs are built from.
	FileBaseURL string
}

func NewConfig(serverAddr, databaseDSN string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		MigrationsPath: "db/migrations",
		AllowedOrigins: allowedOrigins,
	}, nil
}
