package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/motortwin/motortwin/pkg/types"
)

// readingRow is the gorm model behind the SQLite backend. Seq breaks ties
// between readings with equal timestamps.
type readingRow struct {
	Seq         uint   `gorm:"primaryKey;autoIncrement"`
	ID          string `gorm:"uniqueIndex;size:36"`
	MotorID     string `gorm:"index"`
	Temperature float64
	Vibration   float64
	RPM         float64
	Load        float64
	Timestamp   float64 `gorm:"index"`
	Status      string
}

func (readingRow) TableName() string { return "readings" }

func toRow(r types.Reading) readingRow {
	return readingRow{
		ID:          r.ID,
		MotorID:     r.MotorID,
		Temperature: r.Temperature,
		Vibration:   r.Vibration,
		RPM:         r.RPM,
		Load:        r.Load,
		Timestamp:   r.Timestamp,
		Status:      r.Status,
	}
}

func (row readingRow) reading() types.Reading {
	return types.Reading{
		ID:          row.ID,
		MotorID:     row.MotorID,
		Temperature: row.Temperature,
		Vibration:   row.Vibration,
		RPM:         row.RPM,
		Load:        row.Load,
		Timestamp:   row.Timestamp,
		Status:      row.Status,
	}
}

// SQLite stores readings in a SQLite database through gorm.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the readings table.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %q: %w", path, err)
	}

	if err := db.AutoMigrate(&readingRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate sqlite: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Append(ctx context.Context, r types.Reading) error {
	row := toRow(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: insert reading: %w", err)
	}
	return nil
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]types.Reading, error) {
	return s.recent(s.db.WithContext(ctx), limit)
}

func (s *SQLite) RecentByMotor(ctx context.Context, motorID string, limit int) ([]types.Reading, error) {
	return s.recent(s.db.WithContext(ctx).Where("motor_id = ?", motorID), limit)
}

func (s *SQLite) recent(q *gorm.DB, limit int) ([]types.Reading, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	var rows []readingRow
	err := q.
		Order("timestamp DESC").
		Order("seq DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: query recent readings: %w", err)
	}

	out := make([]types.Reading, len(rows))
	for i, row := range rows {
		out[i] = row.reading()
	}
	return out, nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&readingRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("store: count readings: %w", err)
	}
	return int(n), nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
