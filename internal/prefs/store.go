// Package prefs persists user preferences in SQLite and notifies
// subscribers when a value changes, whether the change came from this
// process or another one sharing the database file.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a preference has never been set.
var ErrNotFound = errors.New("prefs: not found")

// Preference is one stored key/value pair.
type Preference struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

// Listener receives boolean preference changes.
type Listener func(key string, value bool)

// Store is a preference table with change notification. Safe for
// concurrent use.
type Store struct {
	db     *gorm.DB
	path   string
	logger zerolog.Logger

	mu   sync.Mutex
	subs []Listener
	last map[string]string
}

// Open opens (creating if needed) the preference database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("prefs: create directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("prefs: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Preference{}); err != nil {
		return nil, fmt.Errorf("prefs: migrate: %w", err)
	}

	s := &Store{
		db:     db,
		path:   path,
		logger: logger,
		last:   make(map[string]string),
	}
	snapshot, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	s.last = snapshot
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get returns the raw value stored under key.
func (s *Store) Get(key string) (string, error) {
	var p Preference
	err := s.db.Where("key = ?", key).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return p.Value, nil
}

// GetBool returns the boolean stored under key, or def if it is unset.
func (s *Store) GetBool(key string, def bool) (bool, error) {
	raw, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("prefs: %s is not a boolean: %q", key, raw)
	}
	return v, nil
}

// SetBool stores value under key and notifies subscribers if it changed.
func (s *Store) SetBool(key string, value bool) error {
	raw := strconv.FormatBool(value)
	p := Preference{Key: key, Value: raw, UpdatedAt: time.Now().UTC()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}

	s.mu.Lock()
	changed := s.last[key] != raw
	s.last[key] = raw
	subs := append([]Listener(nil), s.subs...)
	s.mu.Unlock()

	if changed {
		s.notify(subs, key, raw)
	}
	return nil
}

// Subscribe registers fn for boolean preference changes.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	s.mu.Unlock()
}

// Refresh re-reads the table and notifies subscribers of every key whose
// value differs from the last observed one.
func (s *Store) Refresh() error {
	current, err := s.snapshot()
	if err != nil {
		return err
	}

	s.mu.Lock()
	var changed []string
	for k, v := range current {
		if s.last[k] != v {
			changed = append(changed, k)
		}
	}
	s.last = current
	subs := append([]Listener(nil), s.subs...)
	s.mu.Unlock()

	for _, k := range changed {
		s.notify(subs, k, current[k])
	}
	return nil
}

// All returns every stored preference ordered by key.
func (s *Store) All() ([]Preference, error) {
	var rows []Preference
	if err := s.db.Order("key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("prefs: list: %w", err)
	}
	return rows, nil
}

func (s *Store) snapshot() (map[string]string, error) {
	rows, err := s.All()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Key] = r.Value
	}
	return m, nil
}

func (s *Store) notify(subs []Listener, key, raw string) {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.logger.Warn().Str("key", key).Str("value", raw).Msg("ignoring non-boolean preference")
		return
	}
	s.logger.Debug().Str("key", key).Bool("value", v).Msg("preference changed")
	for _, fn := range subs {
		fn(key, v)
	}
}
