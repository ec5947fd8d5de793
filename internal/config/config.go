package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-this-secret-in-production"

// Fog enforcement modes
const (
	FogEnforcementClient = "client"
	FogEnforcementServer = "server"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrDefaultJWTSecret = errors.New("JWT_SECRET must be changed from its default value")

// Config application settings
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Game      GameConfig
	Sync      SyncConfig
	Redis     RedisConfig
	S3        S3Config
	Telemetry TelemetryConfig
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port               string        `env:"PORT" envDefault:":8080"`
	ReadTimeout        time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout       time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout        time.Duration `env:"IDLE_TIMEOUT" envDefault:"120s"`
	BodyLimit          int           `env:"BODY_LIMIT" envDefault:"1048576"`
	Env                string        `env:"APP_ENV" envDefault:"production"`
	ExposeErrorDetails bool          `env:"EXPOSE_ERROR_DETAILS" envDefault:"false"`
}

// IsDevelopment reports whether the process runs in development mode.
func (s ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

// CORSConfig CORS settings
type CORSConfig struct {
	AllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	AllowHeaders string `env:"CORS_ALLOW_HEADERS" envDefault:"Origin, Content-Type, Accept, Authorization"`
}

// AuthConfig authentication settings
type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET,required,notEmpty"`
	TokenExpiry    time.Duration `env:"JWT_EXPIRY" envDefault:"168h"`
	GoogleClientID string        `env:"GOOGLE_CLIENT_ID"`
	RateLimit      int           `env:"AUTH_RATE_LIMIT" envDefault:"10"`
}

// GoogleEnabled reports whether Google sign-in is configured.
func (a AuthConfig) GoogleEnabled() bool {
	return a.GoogleClientID != ""
}

// DatabaseConfig database settings
type DatabaseConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	TimeZone string `env:"DB_TIMEZONE" envDefault:"UTC"`
	Path     string `env:"DB_PATH" envDefault:"data/tabletop.db"`
}

// DSN postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.TimeZone,
	)
}

// GameConfig game rules
type GameConfig struct {
	DefaultMaxPlayers int    `env:"GAME_DEFAULT_MAX_PLAYERS" envDefault:"6"`
	MaxPlayersLimit   int    `env:"GAME_MAX_PLAYERS_LIMIT" envDefault:"12"`
	DefaultGridSize   int    `env:"GAME_DEFAULT_GRID_SIZE" envDefault:"20"`
	MaxGridSize       int    `env:"GAME_MAX_GRID_SIZE" envDefault:"100"`
	DiceMaxCount      int    `env:"DICE_MAX_COUNT" envDefault:"100"`
	DiceMaxSides      int    `env:"DICE_MAX_SIDES" envDefault:"1000"`
	DiceMaxModifier   int    `env:"DICE_MAX_MODIFIER" envDefault:"1000"`
	FogEnforcement    string `env:"FOG_ENFORCEMENT" envDefault:"client"`
}

// SyncConfig snapshot and log limits
type SyncConfig struct {
	MessageLimit   int           `env:"SYNC_MESSAGE_LIMIT" envDefault:"50"`
	ActionLimit    int           `env:"SYNC_ACTION_LIMIT" envDefault:"50"`
	ListLimit      int           `env:"LIST_LIMIT" envDefault:"100"`
	StreamInterval time.Duration `env:"SYNC_STREAM_INTERVAL" envDefault:"2s"`
	PresenceTTL    time.Duration `env:"PRESENCE_TTL" envDefault:"10s"`
}

// RedisConfig Redis settings
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// S3Config AWS S3 settings
type S3Config struct {
	Region          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	BucketName      string        `env:"AWS_S3_BUCKET"`
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	PresignExpiry   time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"15m"`
	PublicBaseURL   string        `env:"S3_PUBLIC_BASE_URL"`
}

// Enabled reports whether share-screen uploads can be presigned.
func (s S3Config) Enabled() bool {
	return s.BucketName != "" && s.AccessKeyID != ""
}

// TelemetryConfig tracing settings
type TelemetryConfig struct {
	Endpoint string `env:"OTEL_ENDPOINT"`
	Enabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load reads .env and the environment, exiting on invalid configuration.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("🚨 CRITICAL: %v", err)
	}
	return cfg
}

// Parse decodes the environment into a Config.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == defaultJWTSecret {
		return ErrDefaultJWTSecret
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	switch c.Game.FogEnforcement {
	case FogEnforcementClient, FogEnforcementServer:
	default:
		return fmt.Errorf("FOG_ENFORCEMENT must be %q or %q, got %q", FogEnforcementClient, FogEnforcementServer, c.Game.FogEnforcement)
	}
	if c.Game.DefaultMaxPlayers < 1 || c.Game.DefaultMaxPlayers > c.Game.MaxPlayersLimit {
		return fmt.Errorf("GAME_DEFAULT_MAX_PLAYERS must be within [1, %d]", c.Game.MaxPlayersLimit)
	}
	if c.Game.DefaultGridSize < 1 || c.Game.DefaultGridSize > c.Game.MaxGridSize {
		return fmt.Errorf("GAME_DEFAULT_GRID_SIZE must be within [1, %d]", c.Game.MaxGridSize)
	}
	if c.Sync.ListLimit < 1 || c.Sync.MessageLimit < 1 || c.Sync.ActionLimit < 1 {
		return errors.New("sync and list limits must be positive")
	}
	if c.Sync.StreamInterval <= 0 {
		return errors.New("SYNC_STREAM_INTERVAL must be positive")
	}
	return nil
}
