// Package archive persists a decode run's recognized records and
// periodic report snapshots to SQLite, giving a capture session a
// queryable history alongside its live annotation stream.
package archive

import (
	"time"

	"gorm.io/gorm"
)

// RecordEntry is one recognized ID or Data record, keyed by its
// geometry and sample offset within the capture.
type RecordEntry struct {
	ID uint `gorm:"primarykey" json:"id"`

	Kind string `gorm:"index;not null" json:"kind"` // "id" or "data"

	Cylinder int `gorm:"index" json:"cylinder"`
	Side     int `json:"side"`
	Sector   int `gorm:"index" json:"sector"`
	LenClass int `json:"len_class"`
	LenValue int `json:"len_value"`

	DeletedData bool `json:"deleted_data"`
	CRCOK       bool `gorm:"index" json:"crc_ok"`

	SampleOffset uint64 `gorm:"index" json:"sample_offset"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for RecordEntry.
func (RecordEntry) TableName() string { return "record_entries" }

// BeforeCreate fills CreatedAt when unset.
func (r *RecordEntry) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// ReportSnapshot is one periodic counter snapshot emitted by
// pkg/report, spanning the samples observed since the previous
// snapshot.
type ReportSnapshot struct {
	ID uint `gorm:"primarykey" json:"id"`

	SpanStart uint64 `json:"span_start"`
	SpanEnd   uint64 `gorm:"index" json:"span_end"`

	IAM, IDAM, DAM, DDAM uint64 `json:"-"`
	CRCOK, CRCErr        uint64 `json:"-"`
	EiPW, CkEr, OoTI     uint64 `json:"-"`
	Intervals            uint64 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ReportSnapshot.
func (ReportSnapshot) TableName() string { return "report_snapshots" }

// BeforeCreate fills CreatedAt when unset.
func (s *ReportSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return nil
}
