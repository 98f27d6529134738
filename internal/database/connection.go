package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bigpartner/internal/config"
	"bigpartner/internal/domain"
	"bigpartner/internal/metrics"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	db *gorm.DB
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 10 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Models lists every table owned by the application, parents first
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Partner{},
		&domain.Investor{},
		&domain.Property{},
		&domain.Inquiry{},
		&domain.Favorite{},
	}
}

// Init opens the global database connection and migrates the schema
func Init(cfg *config.DatabaseConfig) error {
	conn, err := Open(cfg)
	if err != nil {
		return err
	}

	log.Println("[DB] Running database migrations...")
	if err := Migrate(conn); err != nil {
		return err
	}

	db = conn
	log.Println("[DB] Database connected and migrated successfully")
	return nil
}

// Open connects to PostgreSQL or SQLite depending on the URL scheme
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	if cfg.IsPostgres() {
		log.Println("[DB] Connecting to PostgreSQL database...")
		dialector = postgres.Open(cfg.GetPostgresDSN())
	} else {
		log.Println("[DB] Connecting to SQLite database...")
		dbPath := sqliteDSN(cfg.GetSQLitePath())
		sqlDB, err := sql.Open("sqlite", dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		dialector = sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        dbPath,
			Conn:       sqlDB,
		}
	}

	// SQL statements are never logged; errors surface through returned values
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	conn, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.IsPostgres() {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}

		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
		sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

		log.Printf("[DB] Connection pool configured: maxOpen=%d, maxIdle=%d", maxOpenConns, maxIdleConns)
	}

	if err := ping(conn); err != nil {
		return nil, fmt.Errorf("database connection test failed: %w", err)
	}

	if err := instrument(conn); err != nil {
		return nil, fmt.Errorf("failed to register query metrics: %w", err)
	}

	return conn, nil
}

const startKey = "metrics:start"

// instrument times every statement gorm issues and reports it to Prometheus
func instrument(conn *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(startKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startKey)
			if !ok {
				return
			}
			start, _ := v.(time.Time)
			err := tx.Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = nil
			}
			metrics.RecordDBQuery(op, time.Since(start), err)
		}
	}

	cb := conn.Callback()
	if err := cb.Create().Before("gorm:create").Register("metrics:before_create", before); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("metrics:after_create", after("create")); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("metrics:before_query", before); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("metrics:after_query", after("query")); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("metrics:before_update", before); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("metrics:after_update", after("update")); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("metrics:before_delete", before); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("metrics:after_delete", after("delete")); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("metrics:before_row", before); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("metrics:after_row", after("row")); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("metrics:before_raw", before); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("metrics:after_raw", after("raw"))
}

// Migrate creates or updates all application tables
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// sqliteDSN enables foreign keys so favorites cascade with their parents
func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=foreign_keys") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func ping(conn *gorm.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	if db == nil {
		log.Fatal("[DB] Database not initialized. Call database.Init() first.")
	}
	return db
}

// HealthCheck performs a database health check
func HealthCheck(conn *gorm.DB) error {
	return ping(conn)
}

// GetStats returns database connection statistics
func GetStats(conn *gorm.DB) (*sql.DBStats, error) {
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	stats := sqlDB.Stats()
	return &stats, nil
}

// Close closes the underlying connection pool
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PurgeProperties permanently removes the properties in ids that still
// match scopes, together with their favorites, in one transaction. Rows that
// stopped matching since ids were collected are left alone. It returns the
// deleted rows with their image columns.
func PurgeProperties(conn *gorm.DB, ids []uint, scopes ...func(*gorm.DB) *gorm.DB) ([]domain.Property, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var purged []domain.Property
	err := conn.Transaction(func(tx *gorm.DB) error {
		var candidates []domain.Property
		if err := tx.Select("id", "slug", "images", "featured_image").
			Where("id IN ?", ids).Scopes(scopes...).
			Find(&candidates).Error; err != nil {
			return fmt.Errorf("select properties: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}

		res := tx.Where("id IN ?", ids).Scopes(scopes...).Delete(&domain.Property{})
		if res.Error != nil {
			return fmt.Errorf("delete properties: %w", res.Error)
		}

		var left []uint
		if err := tx.Model(&domain.Property{}).Where("id IN ?", ids).Pluck("id", &left).Error; err != nil {
			return fmt.Errorf("select remaining: %w", err)
		}
		remaining := make(map[uint]bool, len(left))
		for _, id := range left {
			remaining[id] = true
		}
		gone := make([]uint, 0, len(candidates))
		for _, p := range candidates {
			if !remaining[p.ID] {
				purged = append(purged, p)
				gone = append(gone, p.ID)
			}
		}
		if len(gone) == 0 {
			return nil
		}
		if err := tx.Where("property_id IN ?", gone).Delete(&domain.Favorite{}).Error; err != nil {
			return fmt.Errorf("delete favorites: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purged, nil
}
