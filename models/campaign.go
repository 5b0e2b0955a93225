package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/marcel-gle/gb-qr-tracker/utils"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft    CampaignStatus = "draft"
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusArchived CampaignStatus = "archived"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign groups the targets and links of one import under an externally
// supplied id. Code is the human-readable campaign code and must be unique
// across all campaigns; the totals columns are maintained exclusively through
// atomic increments so concurrent imports into the same campaign never lose
// counts to a read-modify-write race.
type Campaign struct {
	ID      string         `gorm:"primaryKey;size:128" json:"id"`
	Name    string         `gorm:"size:255;not null" json:"campaign_name"`
	Code    *string        `gorm:"size:64;uniqueIndex:uk_campaigns_code" json:"code,omitempty"`
	OwnerID string         `gorm:"size:128;not null;index:idx_campaigns_owner_id" json:"owner_id"`
	Status  CampaignStatus `gorm:"size:16;not null;default:'draft'" json:"status"`

	TotalsTargets   int64 `gorm:"not null;default:0" json:"totals_targets"`
	TotalsLinks     int64 `gorm:"not null;default:0" json:"totals_links"`
	TotalsHits      int64 `gorm:"not null;default:0" json:"totals_hits"`
	TotalsUniqueIPs int64 `gorm:"not null;default:0" json:"totals_unique_ips"`

	CreatedAt time.Time `gorm:"index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Campaign
func (Campaign) TableName() string { return "campaigns" }

// CodeOrEmpty returns the campaign code or "" when none is set.
func (c *Campaign) CodeOrEmpty() string {
	if c.Code == nil {
		return ""
	}
	return *c.Code
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.UTCNow()
	return nil
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID            *string
	Code          *string
	OwnerID       *string
	Status        *CampaignStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
