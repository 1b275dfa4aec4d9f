package load

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/xerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// LoadedTable records that a table of a date has been loaded.
type LoadedTable struct {
	ID       uint   `gorm:"primaryKey"`
	Date     string `gorm:"uniqueIndex:idx_loaded_date_name;not null"`
	Name     string `gorm:"uniqueIndex:idx_loaded_date_name;not null"`
	RowCount uint64
	LoadedAt time.Time
}

// Journal is a SQLite journal of loaded tables. Load jobs append rows, so a
// table loaded twice for the same date would hold duplicated rows.
type Journal struct {
	db *gorm.DB
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, xerrors.Errorf("failed to open journal %s: %w", path, err)
	}

	if err := db.AutoMigrate(&LoadedTable{}); err != nil {
		return nil, xerrors.Errorf("failed to migrate journal %s: %w", path, err)
	}

	return &Journal{db: db}, nil
}

// Loaded reports whether the table of the date has been loaded.
func (j *Journal) Loaded(ctx context.Context, date, table string) (bool, error) {
	var n int64

	err := j.db.WithContext(ctx).
		Model(&LoadedTable{}).
		Where("date = ? AND name = ?", date, table).
		Count(&n).Error
	if err != nil {
		return false, xerrors.Errorf("failed to query journal: %w", err)
	}

	return n > 0, nil
}

// Record records a successful load, replacing a previous record of the same table and date.
func (j *Journal) Record(ctx context.Context, date, table string, rows uint64) error {
	rec := &LoadedTable{Date: date, Name: table, RowCount: rows, LoadedAt: time.Now().UTC()}

	err := j.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"row_count", "loaded_at"}),
	}).Create(rec).Error
	if err != nil {
		return xerrors.Errorf("failed to record %s of %s: %w", table, date, err)
	}

	return nil
}

// History returns the records of the date ordered by table name.
func (j *Journal) History(ctx context.Context, date string) ([]LoadedTable, error) {
	var recs []LoadedTable

	err := j.db.WithContext(ctx).Where("date = ?", date).Order("name").Find(&recs).Error
	if err != nil {
		return nil, xerrors.Errorf("failed to query journal: %w", err)
	}

	return recs, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	db, err := j.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
