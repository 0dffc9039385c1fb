package archive

import (
	"time"

	"gorm.io/gorm"
)

// RecordRepository handles RecordEntry persistence.
type RecordRepository struct {
	db *gorm.DB
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create adds a new record entry.
func (r *RecordRepository) Create(e *RecordEntry) error {
	return r.db.Create(e).Error
}

// GetRecent retrieves the most recent N record entries.
func (r *RecordRepository) GetRecent(limit int) ([]RecordEntry, error) {
	var entries []RecordEntry
	err := r.db.Order("sample_offset DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// GetByCylinder retrieves record entries for a specific cylinder.
func (r *RecordRepository) GetByCylinder(cylinder int, limit int) ([]RecordEntry, error) {
	var entries []RecordEntry
	err := r.db.Where("cylinder = ?", cylinder).
		Order("sample_offset ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// GetCRCErrors retrieves record entries whose CRC did not verify.
func (r *RecordRepository) GetCRCErrors(limit int) ([]RecordEntry, error) {
	var entries []RecordEntry
	err := r.db.Where("crc_ok = ?", false).
		Order("sample_offset ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// DeleteOlderThan deletes record entries created before the given time.
func (r *RecordRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", before).Delete(&RecordEntry{})
	return result.RowsAffected, result.Error
}

// ReportRepository handles ReportSnapshot persistence.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create adds a new report snapshot.
func (r *ReportRepository) Create(s *ReportSnapshot) error {
	return r.db.Create(s).Error
}

// GetRecent retrieves the most recent N report snapshots.
func (r *ReportRepository) GetRecent(limit int) ([]ReportSnapshot, error) {
	var snapshots []ReportSnapshot
	err := r.db.Order("span_end DESC").Limit(limit).Find(&snapshots).Error
	return snapshots, err
}
