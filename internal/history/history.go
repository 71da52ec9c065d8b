package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// RetentionLimit is the number of most recent records kept in the store.
const RetentionLimit = 20

const (
	historySchemaVersion = 1
	memoryDSN            = ":memory:"
)

// Store is the persistent, bounded log of copy operations plus the user's
// key/value settings. All methods are safe for concurrent use.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	// mu serializes read-modify-write units such as append+evict.
	mu     sync.Mutex
	nextID atomic.Uint64
}

// Record is one completed copy operation.
type Record struct {
	ID        uint      `gorm:"primarykey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"index"`

	FileCount int
	LineCount int
	Content   string
	Summary   sql.NullString
}

func (Record) TableName() string { return "copy_history" }

// Setting is a persisted key/value pair.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (Setting) TableName() string { return "settings" }

type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (creating if needed) the store at dbFilePath. Pass ":memory:"
// for a throwaway in-memory store.
func Open(dbFilePath string, opts ...Option) (*Store, error) {
	store := &Store{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}

	dbFileExists := true
	if dbFilePath == memoryDSN {
		dbFileExists = false
	} else if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking history db: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbFilePath)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and makes every
	// statement go through one serialized handle.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error accessing database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if needsMigration(dbFilePath, dbFileExists, db) {
		if err := db.AutoMigrate(&Record{}, &Setting{}); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("error auto-migrating database schema: %w", err)
		}
		if dbFilePath != memoryDSN {
			if err := writeSchemaVersion(dbFilePath, historySchemaVersion); err != nil {
				sqlDB.Close()
				return nil, fmt.Errorf("error writing history schema version: %w", err)
			}
		}
	}

	var maxID sql.NullInt64
	if err := db.Model(&Record{}).Select("MAX(id)").Row().Scan(&maxID); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("error reading last history id: %w", err)
	}
	if maxID.Valid {
		store.nextID.Store(uint64(maxID.Int64))
	}

	store.db = db
	return store, nil
}

func dsn(dbFilePath string) string {
	if dbFilePath == memoryDSN {
		return memoryDSN
	}
	return dbFilePath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"
}

func needsMigration(dbFilePath string, dbFileExists bool, db *gorm.DB) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := schemaVersionMatches(dbFilePath)
	if err != nil || !versionMatches {
		return true
	}

	// If the version marker is present but a table is missing (corruption or manual deletion),
	// re-run migrations to restore the schema.
	return !db.Migrator().HasTable(&Record{}) || !db.Migrator().HasTable(&Setting{})
}

func writeSchemaVersion(dbFilePath string, version int) error {
	return os.WriteFile(schemaVersionPath(dbFilePath), []byte(strconv.Itoa(version)), 0644)
}

func schemaVersionMatches(dbFilePath string) (bool, error) {
	data, err := os.ReadFile(schemaVersionPath(dbFilePath))
	if err != nil {
		return false, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	if version != historySchemaVersion {
		return false, fmt.Errorf("history schema version mismatch: got %d, want %d", version, historySchemaVersion)
	}
	return true, nil
}

func schemaVersionPath(dbFilePath string) string {
	return filepath.Join(filepath.Dir(dbFilePath), "history_schema_version")
}

// Append records a new copy operation and evicts everything beyond the
// RetentionLimit newest records, as one transaction. It returns the new id.
func (s *Store) Append(fileCount int, lineCount int, content string) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := Record{
		ID:        uint(s.nextID.Add(1)),
		CreatedAt: time.Now().UTC(),
		FileCount: fileCount,
		LineCount: lineCount,
		Content:   content,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		// Ids are monotonic, so they order records by age regardless of clock
		// or timezone changes.
		keep := tx.Model(&Record{}).
			Select("id").
			Order("id desc").
			Limit(RetentionLimit)
		result := tx.Where("id NOT IN (?)", keep).Delete(&Record{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			s.logger.Debug("evicted history records", zap.Int64("count", result.RowsAffected))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append history record: %w", err)
	}

	return record.ID, nil
}

// UpdateSummary sets the summary of a record. Updating a record that has
// already been evicted is not an error.
func (s *Store) UpdateSummary(id uint, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Model(&Record{}).
		Where("id = ?", id).
		UpdateColumn("summary", sql.NullString{String: summary, Valid: true})
	if result.Error != nil {
		return fmt.Errorf("failed to update summary of record %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.Debug("summary update for evicted record ignored", zap.Uint("id", id))
	}

	return nil
}

// List returns a snapshot of the retained records, newest first.
func (s *Store) List() ([]Record, error) {
	var records []Record
	result := s.db.Order("id desc").
		Limit(RetentionLimit).
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}

	return records, nil
}

// Get returns a single record.
func (s *Store) Get(id uint) (Record, bool, error) {
	var record Record
	result := s.db.Where("id = ?", id).Limit(1).Find(&record)
	if result.Error != nil {
		return Record{}, false, result.Error
	}

	return record, result.RowsAffected > 0, nil
}

// GetContent returns the full content of a record, reporting false when the
// record no longer exists.
func (s *Store) GetContent(id uint) (string, bool, error) {
	record, found, err := s.Get(id)
	if err != nil || !found {
		return "", found, err
	}

	return record.Content, true, nil
}

// Clear deletes all history records. Settings are kept.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Exec("DELETE FROM copy_history")
	if result.Error != nil {
		return result.Error
	}

	return nil
}

// GetSetting returns the stored value for key, or def when it has never been set.
func (s *Store) GetSetting(key string, def string) (string, error) {
	var setting Setting
	result := s.db.Where("key = ?", key).Limit(1).Find(&setting)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return def, nil
	}

	return setting.Value, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value})
	if result.Error != nil {
		return fmt.Errorf("failed to save setting %q: %w", key, result.Error)
	}

	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
