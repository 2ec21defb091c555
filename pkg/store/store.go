package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/machinewire/mcpchat/pkg/types"
)

// Well-known setting keys. Per-provider API keys use APIKeyFor.
const (
	KeyServerConfig = "server_config"
	KeyProvider     = "selected_provider"
	KeyModel        = "selected_model"
	KeyTheme        = "dark_theme"
)

/*
APIKeyFor returns the setting key under which a provider's API key is kept.
*/
func APIKeyFor(providerID string) string {
	return "api_key." + providerID
}

/*
Store is the narrow persistence surface the orchestration core depends on:
a string key-value table for settings plus the append-only transcript. It
survives reloads; everything else is ephemeral.
*/
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	AppendEntry(entry types.TranscriptEntry) error
	Entries() ([]types.TranscriptEntry, error)
	Close() error
}

type setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

type transcriptRow struct {
	ID        uint `gorm:"primaryKey;autoIncrement"`
	Role      string
	Content   string
	UsedTools string
	Timestamp time.Time
}

/*
SQLiteStore persists settings and transcript in a single sqlite file through
gorm. The driver is pure Go, so the binary stays cgo-free.
*/
type SQLiteStore struct {
	db *gorm.DB
}

/*
Open creates or opens the database at path and migrates the schema. Use the
":memory:" DSN in tests.
*/
func Open(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", path, err)
	}

	if err := db.AutoMigrate(&setting{}, &transcriptRow{}); err != nil {
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var row setting

	err := s.db.First(&row, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return row.Value, true, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	row := setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.Save(&row).Error
}

func (s *SQLiteStore) AppendEntry(entry types.TranscriptEntry) error {
	used, err := json.Marshal(entry.UsedTools)
	if err != nil {
		return fmt.Errorf("encoding used tools: %w", err)
	}

	row := transcriptRow{
		Role:      entry.Role,
		Content:   entry.Content,
		UsedTools: string(used),
		Timestamp: entry.Timestamp,
	}

	return s.db.Create(&row).Error
}

/*
Entries returns the full transcript in append order.
*/
func (s *SQLiteStore) Entries() ([]types.TranscriptEntry, error) {
	var rows []transcriptRow

	if err := s.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]types.TranscriptEntry, 0, len(rows))

	for _, row := range rows {
		entry := types.TranscriptEntry{
			Role:      row.Role,
			Content:   row.Content,
			Timestamp: row.Timestamp,
		}

		if row.UsedTools != "" {
			if err := json.Unmarshal([]byte(row.UsedTools), &entry.UsedTools); err != nil {
				return nil, fmt.Errorf("decoding used tools: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *SQLiteStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}

	return db.Close()
}
