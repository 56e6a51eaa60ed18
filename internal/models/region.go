package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Region is a monitoring/ranging target as the native modules understand it:
// identifier + uuid, optionally narrowed by major and minor.
type Region struct {
	ID         uint       `gorm:"primaryKey" json:"-"`
	CreatedAt  *time.Time `json:"-"`
	UpdatedAt  *time.Time `json:"-"`
	DeviceID   string     `gorm:"uniqueIndex:idx_regions_device_identifier;not null" json:"-"`
	Identifier string     `gorm:"uniqueIndex:idx_regions_device_identifier;not null" json:"identifier"`
	UUID       string     `gorm:"column:uuid;not null" json:"uuid"`
	Major      *int       `json:"major,omitempty"`
	Minor      *int       `json:"minor,omitempty"`
	Monitoring bool       `gorm:"not null;default:false" json:"-"`
	Ranging    bool       `gorm:"not null;default:false" json:"-"`
}

func (r *Region) Validate() error {
	if r.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if _, err := uuid.Parse(r.UUID); err != nil {
		return fmt.Errorf("uuid %q is invalid: %w", r.UUID, err)
	}
	if r.Major != nil && (*r.Major < 0 || *r.Major > 65535) {
		return fmt.Errorf("major must be between 0 and 65535, got %d", *r.Major)
	}
	if r.Minor != nil && (*r.Minor < 0 || *r.Minor > 65535) {
		return fmt.Errorf("minor must be between 0 and 65535, got %d", *r.Minor)
	}
	return nil
}

func (r *Region) IsActive() bool {
	return r.Monitoring || r.Ranging
}

// Target strips the registry bookkeeping and leaves what a bridge command needs.
func (r *Region) Target() Region {
	return Region{
		Identifier: r.Identifier,
		UUID:       r.UUID,
		Major:      r.Major,
		Minor:      r.Minor,
	}
}

func (r *Region) String() string {
	return fmt.Sprintf("%s(%s)", r.Identifier, r.UUID)
}
