package models

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marcel-gle/gb-qr-tracker/utils"
)

// BlacklistEntry suppresses a business for a single owner. Entries carry
// either a plain business ID or a legacy document-path style reference of the
// form "businesses/<id>"; ResolvedBusinessID handles both.
type BlacklistEntry struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	OwnerID    string  `gorm:"size:128;not null;index:idx_blacklist_owner_id" json:"owner_id"`
	BusinessID *string `gorm:"size:160" json:"business_id,omitempty"`
	Ref        *string `gorm:"size:512" json:"ref,omitempty"`
	Reason     *string `gorm:"size:255" json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for BlacklistEntry
func (BlacklistEntry) TableName() string { return "blacklist_entries" }

// BeforeCreate is called before creating a new record
func (b *BlacklistEntry) BeforeCreate(tx *gorm.DB) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ResolvedBusinessID returns the business this entry suppresses, preferring
// the explicit BusinessID and falling back to the last path segment of Ref.
// Returns "" when the entry carries neither.
func (b *BlacklistEntry) ResolvedBusinessID() string {
	if b.BusinessID != nil && *b.BusinessID != "" {
		return *b.BusinessID
	}
	if b.Ref != nil && *b.Ref != "" {
		ref := strings.TrimSuffix(*b.Ref, "/")
		if idx := strings.LastIndex(ref, "/"); idx >= 0 {
			return ref[idx+1:]
		}
		return ref
	}
	return ""
}

// BlacklistFilter provides filter fields for repository queries
type BlacklistFilter struct {
	ID         *uint
	OwnerID    *string
	BusinessID *string
}
