package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcel-gle/gb-qr-tracker/utils"
	"gorm.io/gorm"
)

// TargetStatus represents the terminal state of an imported row
type TargetStatus string

const (
	// TargetStatusLinked means a link was created for the row.
	TargetStatusLinked TargetStatus = "linked"
	// TargetStatusValidated means the row has a destination but no link was
	// attached (e.g. link creation failed after the allocation retry).
	TargetStatusValidated TargetStatus = "validated"
	// TargetStatusExcluded means the row had no destination URL.
	TargetStatusExcluded TargetStatus = "excluded"
)

// String returns the string representation of the status
func (s TargetStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s TargetStatus) Valid() bool {
	switch s {
	case TargetStatusLinked, TargetStatusValidated, TargetStatusExcluded:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TargetStatus
func (s *TargetStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = TargetStatus(v)
	case []byte:
		*s = TargetStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TargetStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TargetStatus
func (s TargetStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid TargetStatus: %s", s)
	}
	return string(s), nil
}

// RowData is the verbatim import row kept on a target for audit purposes,
// stored as a JSON object of column name to cell value.
type RowData map[string]string

// Value implements the driver.Valuer interface for RowData
func (d RowData) Value() (driver.Value, error) {
	if d == nil {
		return json.Marshal(map[string]string{})
	}
	return json.Marshal(d)
}

// Scan implements the sql.Scanner interface for RowData
func (d *RowData) Scan(value any) error {
	if value == nil {
		*d = RowData{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RowData", value)
	}

	return json.Unmarshal(bytes, d)
}

// Target is the per-row audit record created for every imported row of a
// campaign, whether or not a link results. Apart from the link reference and
// status decided at creation time it is never updated.
type Target struct {
	ID             string       `gorm:"primaryKey;size:64" json:"id"`
	CampaignID     string       `gorm:"size:128;not null;index:idx_targets_campaign_id" json:"campaign_id"`
	BusinessID     string       `gorm:"size:160;not null;index:idx_targets_business_id" json:"business_id"`
	Status         TargetStatus `gorm:"size:16;not null" json:"status"`
	ReasonExcluded *string      `gorm:"size:255" json:"reason_excluded,omitempty"`
	LinkID         *string      `gorm:"size:160" json:"link_id,omitempty"`
	ImportRow      RowData      `gorm:"type:jsonb;not null" json:"import_row"`
	DedupeKey      string       `gorm:"size:512;index:idx_targets_dedupe_key" json:"dedupe_key"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Target
func (Target) TableName() string { return "targets" }

// BeforeCreate is called before creating a new record
func (t *Target) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = utils.UTCNow()
	}
	return nil
}

// TargetFilter provides filter fields for repository queries
type TargetFilter struct {
	ID            *string
	CampaignID    *string
	BusinessID    *string
	Status        *TargetStatus
	DedupeKey     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
