package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&KVEntry{}, &Assessment{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Get reads a state value. The bool is false when the key was never set.
func (d *Database) Get(ctx context.Context, key string) (string, bool, error) {
	var entry KVEntry
	err := d.gorm.WithContext(ctx).Where("`key` = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// Set inserts or replaces a state value.
func (d *Database) Set(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry := KVEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return d.gorm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

// Delete removes a state value. Deleting a missing key is not an error.
func (d *Database) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Where("`key` = ?", key).Delete(&KVEntry{}).Error
}

// SaveAssessment stores a finished analysis, assigning an id when missing.
func (d *Database) SaveAssessment(ctx context.Context, assessment *Assessment) error {
	if assessment == nil {
		return errors.New("assessment is nil")
	}
	if strings.TrimSpace(assessment.ID) == "" {
		assessment.ID = uuid.NewString()
	}
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = time.Now().UTC()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.WithContext(ctx).Create(assessment).Error
}

// ListAssessments returns assessments newest first with the total count.
func (d *Database) ListAssessments(ctx context.Context, offset, limit int) ([]Assessment, int64, error) {
	var total int64
	if err := d.gorm.WithContext(ctx).Model(&Assessment{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := d.gorm.WithContext(ctx).Model(&Assessment{}).Order("created_at DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Assessment
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// GetAssessment loads one assessment by id.
func (d *Database) GetAssessment(ctx context.Context, id string) (*Assessment, error) {
	var assessment Assessment
	err := d.gorm.WithContext(ctx).Where("id = ?", id).Take(&assessment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &assessment, nil
}
