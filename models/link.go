package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marcel-gle/gb-qr-tracker/utils"
)

// SnapshotMailing is the frozen mailing address captured on a link at
// creation time so later edits to the business never change what was printed.
type SnapshotMailing struct {
	BusinessName  string   `json:"business_name"`
	RecipientName string   `json:"recipient_name,omitempty"`
	AddressLines  []string `json:"address_lines"`
	Postcode      string   `json:"postcode"`
	City          string   `json:"city"`
	Country       string   `json:"country"`
}

// Value implements the driver.Valuer interface for SnapshotMailing
func (s SnapshotMailing) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for SnapshotMailing
func (s *SnapshotMailing) Scan(value any) error {
	if value == nil {
		*s = SnapshotMailing{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SnapshotMailing", value)
	}

	return json.Unmarshal(bytes, s)
}

// Link is a tracked redirect record. Its ID is the human-readable slug that
// goes on printed material, allocated collision-free per import run. Links
// are create-only: a second import run never overwrites an existing slug.
type Link struct {
	ID          string  `gorm:"primaryKey;size:160" json:"id"`
	CampaignID  string  `gorm:"size:128;not null;index:idx_links_campaign_id" json:"campaign_id"`
	BusinessID  string  `gorm:"size:160;not null;index:idx_links_business_id" json:"business_id"`
	TargetID    string  `gorm:"size:64;not null" json:"target_id"`
	OwnerID     string  `gorm:"size:128;not null" json:"owner_id"`
	Destination string  `gorm:"size:2048;not null" json:"destination"`
	TemplateID  *string `gorm:"size:255" json:"template_id,omitempty"`
	Active      bool    `gorm:"default:true" json:"active"`

	SnapshotMailing SnapshotMailing `gorm:"type:jsonb;not null" json:"snapshot_mailing"`

	HitCount  int64      `gorm:"default:0" json:"hit_count"`
	LastHitAt *time.Time `json:"last_hit_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for Link
func (Link) TableName() string { return "links" }

// BeforeCreate is called before creating a new record
func (l *Link) BeforeCreate(tx *gorm.DB) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// LinkFilter provides filter fields for repository queries
type LinkFilter struct {
	ID            *string
	IDPrefix      *string
	CampaignID    *string
	BusinessID    *string
	OwnerID       *string
	Active        *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
