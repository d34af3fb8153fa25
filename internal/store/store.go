// Package store provides SQLite-backed persistence for conversations and
// their messages, including schema creation and additive migrations.
package store

import (
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/journal-go/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store wraps the SQLite database holding all journal data.
type Store struct {
	db   *gorm.DB
	path string
	log  *slog.Logger
}

// Open opens (or creates) the journal database at path and brings the
// schema up to date. Concurrent access from multiple processes is
// serialized by SQLite's own locking; the busy timeout keeps writers from
// failing immediately while another holds the write lock.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=30000&_foreign_keys=on&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, path: path, log: log}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	s.log.Debug("database ready", "path", path)
	return s, nil
}

// migrate creates missing tables and applies additive schema changes.
// Databases created before the summary_generated column existed are
// upgraded in place: the column is added with a false default and existing
// rows are left untouched.
func (s *Store) migrate() error {
	m := s.db.Migrator()

	hadConversations := m.HasTable(&models.Conversation{})
	needsSummaryColumn := hadConversations && !m.HasColumn(&models.Conversation{}, "summary_generated")
	if needsSummaryColumn {
		s.log.Info("running migration: adding summary_generated column")
	}

	if err := s.db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		return err
	}

	if needsSummaryColumn {
		// AutoMigrate adds the column with its default, but rows written by
		// older versions may carry NULL depending on the SQLite version.
		err := s.db.Model(&models.Conversation{}).
			Where("summary_generated IS NULL").
			Update("summary_generated", false).Error
		if err != nil {
			return fmt.Errorf("backfill summary_generated: %w", err)
		}
		s.log.Info("migration complete: summary_generated column added")
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}
