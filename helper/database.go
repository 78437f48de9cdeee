package helper

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// DatabaseConfiguration holds the connection settings for PostgreSQL.
type DatabaseConfiguration struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	Schema   string
	SSLMode  string
}

// NewDatabaseConfiguration reads the database configuration from the environment.
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	config := &DatabaseConfiguration{
		Host:     GetEnvString("DB_HOST", "localhost"),
		Port:     GetEnvString("DB_PORT", "5432"),
		Database: GetEnvString("DB_DATABASE", ""),
		Username: GetEnvString("DB_USERNAME", ""),
		Password: GetEnvString("DB_PASSWORD", ""),
		Schema:   GetEnvString("DB_SCHEMA", "public"),
		SSLMode:  GetEnvString("DB_SSLMODE", "disable"),
	}

	if config.Database == "" {
		return nil, NewError("database configuration", fmt.Errorf("DB_DATABASE is not set"))
	}
	if config.Username == "" {
		return nil, NewError("database configuration", fmt.Errorf("DB_USERNAME is not set"))
	}

	return config, nil
}

// DSN returns the lib/pq connection string.
func (c *DatabaseConfiguration) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s search_path=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.Schema, c.SSLMode,
	)
}

// Database bundles the connection pool with the logger used by all handlers.
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens and pings the database. It panics if the database is unreachable.
func NewDatabase(name string, config *DatabaseConfiguration, logger *slog.Logger) *Database {
	instance, err := connect(config)
	if err != nil {
		log.Panicf("error connecting to database %s: %v", name, err)
	}

	logger.Info("Connected to database", slog.String("name", name), slog.String("host", config.Host))

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}
}

// NewTestDatabase opens a database with a logger that only reports errors.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	opts := PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelError,
		},
	}
	var out io.Writer = os.Stdout
	return NewDatabase("test", config, slog.New(NewPrettyHandler(out, opts)))
}

func connect(config *DatabaseConfiguration) (*sql.DB, error) {
	instance, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, err
	}

	instance.SetMaxOpenConns(10)
	instance.SetMaxIdleConns(5)
	instance.SetConnMaxIdleTime(5 * time.Minute)

	var pingErr error
	for i := 0; i < 5; i++ {
		if pingErr = instance.Ping(); pingErr == nil {
			return instance, nil
		}
		time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
	}

	instance.Close()
	return nil, pingErr
}

// Close closes the connection pool.
func (d *Database) Close() error {
	if d == nil || d.Instance == nil {
		return nil
	}
	return d.Instance.Close()
}
