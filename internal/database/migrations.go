package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/mrlokans/epubreader/internal/entities"
)

// LatestVersion is the schema version produced by the full migration history.
const LatestVersion = 3

// migration is one additive schema step. Steps never drop or rewrite data,
// and every step checks for the objects it creates so that re-running it
// against an already upgraded database changes nothing.
type migration struct {
	version     int
	description string
	apply       func(tx *gorm.DB) error
}

// bookV1 is the books table as first shipped, before cover placeholders.
type bookV1 struct {
	ID               string  `gorm:"primaryKey;size:64"`
	Title            string  `gorm:"size:512"`
	Author           string  `gorm:"size:256"`
	Cover            string  `gorm:"type:text"`
	Content          []byte  `gorm:"type:blob"`
	AddedAt          int64   `gorm:"not null;index:idx_books_by_added"`
	LastReadPosition *string `gorm:"size:1024"`
}

func (bookV1) TableName() string {
	return "books"
}

var migrations = []migration{
	{
		version:     1,
		description: "books and highlights",
		apply: func(tx *gorm.DB) error {
			if err := createTable(tx, &bookV1{}, "idx_books_by_added"); err != nil {
				return err
			}
			return createTable(tx, &entities.Highlight{}, "idx_highlights_by_book")
		},
	},
	{
		version:     2,
		description: "bookmarks",
		apply: func(tx *gorm.DB) error {
			return createTable(tx, &entities.Bookmark{}, "idx_bookmarks_by_book")
		},
	},
	{
		version:     3,
		description: "settings and cover placeholders",
		apply: func(tx *gorm.DB) error {
			if err := createTable(tx, &entities.Setting{}); err != nil {
				return err
			}
			return addColumn(tx, &entities.Book{}, "CoverBlurHash")
		},
	},
}

// migrate upgrades the database to target, one step per transaction.
func (s *Store) migrate(target int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.DB.AutoMigrate(&entities.SchemaVersion{}); err != nil {
		return fmt.Errorf("failed to create schema version table: %w", err)
	}

	current, err := readVersion(s.DB)
	if err != nil {
		return err
	}
	s.version = current

	for _, m := range migrations {
		if m.version <= current || m.version > target {
			continue
		}

		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Save(&entities.SchemaVersion{ID: 1, Version: m.version}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to migrate database to v%d (%s): %w", m.version, m.description, err)
		}

		log.Printf("Migrated database to schema v%d: %s", m.version, m.description)
		s.version = m.version
	}

	return nil
}

func readVersion(db *gorm.DB) (int, error) {
	var row entities.SchemaVersion
	err := db.Where("id = ?", 1).Limit(1).Find(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return row.Version, nil
}

func createTable(tx *gorm.DB, model any, indexes ...string) error {
	m := tx.Migrator()
	if !m.HasTable(model) {
		if err := m.CreateTable(model); err != nil {
			return err
		}
	}
	for _, name := range indexes {
		if m.HasIndex(model, name) {
			continue
		}
		if err := m.CreateIndex(model, name); err != nil {
			return err
		}
	}
	return nil
}

func addColumn(tx *gorm.DB, model any, field string) error {
	m := tx.Migrator()
	if m.HasColumn(model, field) {
		return nil
	}
	return m.AddColumn(model, field)
}
