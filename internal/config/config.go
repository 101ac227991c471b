package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	AWS      AWSConfig      `json:"aws"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
	Tokens   TokensConfig   `json:"tokens"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// AWSConfig holds the S3 region and bucket for document content
type AWSConfig struct {
	Region          string        `json:"region"`
	DocumentsBucket string        `json:"documents_bucket"`
	PresignExpiry   time.Duration `json:"presign_expiry"`
}

// EmailConfig configures outbound notification email
type EmailConfig struct {
	Sender      string `json:"sender"`
	FrontendURL string `json:"frontend_url"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// TokensConfig controls invitation token lifetimes and cleanup
type TokensConfig struct {
	DocumentTokenTTL time.Duration `json:"document_token_ttl"`
	CleanupSchedule  string        `json:"cleanup_schedule"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "offerflow",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
		},
		AWS: AWSConfig{
			Region:          "us-east-1",
			DocumentsBucket: "offerflow-documents",
			PresignExpiry:   time.Hour,
		},
		Email: EmailConfig{
			Sender:      "notifications@offerflow.app",
			FrontendURL: "http://localhost:3000",
		},
		Tokens: TokensConfig{
			DocumentTokenTTL: 72 * time.Hour,
			CleanupSchedule:  "0 3 * * *",
		},
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
		config.AWS.Region = region
	}
	if bucket := os.Getenv("DOCUMENTS_BUCKET"); bucket != "" {
		config.AWS.DocumentsBucket = bucket
	}
	if sender := os.Getenv("EMAIL_SENDER"); sender != "" {
		config.Email.Sender = sender
	}
	if frontend := os.Getenv("FRONTEND_URL"); frontend != "" {
		config.Email.FrontendURL = frontend
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
