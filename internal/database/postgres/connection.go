package postgres

import (
	"fmt"
	"log"
	"os"
	"time"

	"beacons-sync/internal/config/components"
	"beacons-sync/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresDB struct {
	db  *gorm.DB
	dsn string
}

func NewConnection(cfg components.PostgresConfigImpl) (*PostgresDB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dsn := cfg.GetDsn()
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	postgresDB := &PostgresDB{db: db, dsn: dsn}

	if err := postgresDB.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return postgresDB, nil
}

func (p *PostgresDB) migrate() error {
	return p.db.AutoMigrate(
		&models.Region{},
	)
}

func (p *PostgresDB) GetDB() *gorm.DB {
	return p.db
}

// GetDsn is the connection string the LISTEN connection reuses.
func (p *PostgresDB) GetDsn() string {
	return p.dsn
}

func (p *PostgresDB) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
