package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Coordinate is an optional geocoded position attached to a business.
// Source names the geocoding provider that produced it (e.g. "mapbox").
type Coordinate struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Source string  `json:"source,omitempty"`
}

// Value implements the driver.Valuer interface for Coordinate
func (c Coordinate) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for Coordinate
func (c *Coordinate) Scan(value any) error {
	if value == nil {
		*c = Coordinate{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Coordinate", value)
	}

	return json.Unmarshal(bytes, c)
}

// Business is the canonical record for a mailing recipient, keyed by the
// normalized name+postcode slug. It is merge-upserted on every import that
// sees the same identifier and is never deleted by the import pipeline.
// OwnerIDs only ever grows; Name holds the contact person, not the company.
type Business struct {
	ID           string         `gorm:"primaryKey;size:160" json:"business_id"`
	BusinessName *string        `gorm:"size:255;index:idx_businesses_business_name" json:"business_name,omitempty"`
	Street       *string        `gorm:"size:255" json:"street,omitempty"`
	HouseNumber  *string        `gorm:"size:32" json:"house_number,omitempty"`
	Postcode     *string        `gorm:"size:16;index:idx_businesses_postcode" json:"postcode,omitempty"`
	City         *string        `gorm:"size:128" json:"city,omitempty"`
	Name         *string        `gorm:"size:255" json:"name,omitempty"`
	Phone        *string        `gorm:"size:64" json:"phone,omitempty"`
	Email        *string        `gorm:"size:255" json:"email,omitempty"`
	Salutation   *string        `gorm:"size:64" json:"salutation,omitempty"`
	Address      *string        `gorm:"type:text" json:"address,omitempty"`
	Coordinate   *Coordinate    `gorm:"type:jsonb" json:"coordinate,omitempty"`
	OwnerIDs     pq.StringArray `gorm:"type:text" json:"owner_ids"`
	HitCount     int64          `gorm:"not null;default:0" json:"hit_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for Business
func (Business) TableName() string { return "businesses" }

// HasOwner reports whether the given owner already references this business.
func (b *Business) HasOwner(ownerID string) bool {
	for _, o := range b.OwnerIDs {
		if o == ownerID {
			return true
		}
	}
	return false
}

// BusinessFilter provides filter fields for repository queries
type BusinessFilter struct {
	ID            *string
	BusinessName  *string
	Postcode      *string
	City          *string
	Email         *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
