// Package auditlog is the persistent operation journal: one row per
// identify/read/write/validate/compare call, so an operator can answer "what was
// done to this radio and when" after the fact. Built on GORM with the
// pure-Go modernc.org/sqlite dialector, a logger-backed gormLogAdapter,
// and a thin repository struct wrapping the one Operation model.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// Operation is one journaled identify/read/write/validate/compare call.
type Operation struct {
	ID        string `gorm:"primarykey" json:"id"`
	Kind      string `gorm:"index;not null" json:"kind"` // "identify", "read", "write", "validate", "compare"
	Host      string `gorm:"index" json:"host"`
	RadioID   uint32 `gorm:"index" json:"radio_id"`
	Succeeded bool   `gorm:"not null" json:"succeeded"`
	Detail    string `json:"detail"` // free-form summary (device model, warning count, error text)

	StartedAt  time.Time `gorm:"index;not null" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName pins the table name explicitly rather than relying on GORM's
// pluralization of the struct name.
func (Operation) TableName() string { return "operations" }

// BeforeCreate assigns a uuid-based ID and fills CreatedAt when absent.
func (o *Operation) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	return nil
}

// Config holds journal configuration.
type Config struct {
	Path string // path to the SQLite database file
}

// Log wraps the GORM database connection and the Operation repository.
type Log struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open opens (creating if necessary) the SQLite-backed operation journal.
func Open(cfg Config, log *logger.Logger) (*Log, error) {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	if cfg.Path == "" {
		cfg.Path = "trboctl.db"
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("auditlog: create database directory: %w", err)
		}
	}

	gormLog := gormlogger.New(
		&gormLogAdapter{log: log},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	dialector := sqlite.Dialector{DriverName: "sqlite", DSN: cfg.Path}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("auditlog: open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("auditlog: get database handle: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("auditlog: %s: %w", pragma, err)
		}
	}

	if err := db.AutoMigrate(&Operation{}); err != nil {
		return nil, fmt.Errorf("auditlog: migrate: %w", err)
	}

	log.Info("audit log opened", logger.String("path", cfg.Path))
	return &Log{db: db, log: log.WithComponent("auditlog")}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record inserts a completed operation.
func (l *Log) Record(op Operation) error {
	if err := l.db.Create(&op).Error; err != nil {
		return fmt.Errorf("auditlog: record operation: %w", err)
	}
	return nil
}

// Recent returns the most recent N operations, newest first.
func (l *Log) Recent(limit int) ([]Operation, error) {
	var ops []Operation
	err := l.db.Order("started_at DESC").Limit(limit).Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("auditlog: query recent operations: %w", err)
	}
	return ops, nil
}

// ByRadioID returns operations recorded against a specific radio ID.
func (l *Log) ByRadioID(radioID uint32, limit int) ([]Operation, error) {
	var ops []Operation
	err := l.db.Where("radio_id = ?", radioID).
		Order("started_at DESC").
		Limit(limit).
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("auditlog: query operations for radio %d: %w", radioID, err)
	}
	return ops, nil
}

// gormLogAdapter routes GORM's own logging through pkg/logger.
type gormLogAdapter struct {
	log *logger.Logger
}

func (a *gormLogAdapter) Printf(format string, args ...interface{}) {
	a.log.Info(fmt.Sprintf(format, args...))
}
