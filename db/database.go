package db

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/models"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Initialize opens the database selected by the configuration and configures the pool.
// postgres:// and postgresql:// URLs use PostgreSQL, libsql:// URLs use Turso, anything
// else falls back to a local SQLite file in WAL mode.
func Initialize(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Info
	if cfg.IsProduction() {
		logLevel = logger.Warn
	}

	dialector, driverName, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Printf("Database connection established (%s)", driverName)
	return database, nil
}

func openDialector(cfg *config.Config) (gorm.Dialector, string, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), "postgres", nil

	case strings.HasPrefix(dsn, "libsql://"):
		if cfg.DatabaseToken != "" {
			u, err := url.Parse(dsn)
			if err != nil {
				return nil, "", fmt.Errorf("invalid DATABASE_URL: %w", err)
			}
			q := u.Query()
			q.Set("authToken", cfg.DatabaseToken)
			u.RawQuery = q.Encode()
			dsn = u.String()
		}
		conn, err := sql.Open("libsql", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open libsql connection: %w", err)
		}
		return sqlite.New(sqlite.Config{Conn: conn}), "libsql", nil

	default:
		// WAL mode for better concurrency support
		return sqlite.Open(cfg.DBPath + "?_journal_mode=WAL&_busy_timeout=5000"), "sqlite", nil
	}
}

// AutoMigrate runs database migrations for every model the application owns
func AutoMigrate(database *gorm.DB) error {
	if database == nil {
		return fmt.Errorf("database not initialized")
	}

	err := database.AutoMigrate(
		&models.Department{},
		&models.Municipality{},
		&models.Locality{},
		&models.Sector{},
		&models.User{},
		&models.Consultation{},
		&models.RevokedToken{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// Close closes the database connection
func Close(database *gorm.DB) error {
	if database == nil {
		return nil
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
