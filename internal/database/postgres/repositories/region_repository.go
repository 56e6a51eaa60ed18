package repositories

import (
	"context"
	"errors"
	"fmt"

	"beacons-sync/internal/models"

	"gorm.io/gorm"
)

var ErrRegionNotFound = errors.New("region not found")

type RegionRepository struct {
	db *gorm.DB
}

func NewRegionRepository(db *gorm.DB) *RegionRepository {
	return &RegionRepository{db: db}
}

// CreateOrUpdate upserts by (device_id, identifier) and writes the stored row back into region.
func (r *RegionRepository) CreateOrUpdate(ctx context.Context, region *models.Region) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Region
		result := tx.Where("device_id = ? AND identifier = ?", region.DeviceID, region.Identifier).First(&existing)

		if result.Error == nil {
			updateMap := map[string]interface{}{
				"uuid":       region.UUID,
				"major":      region.Major,
				"minor":      region.Minor,
				"monitoring": region.Monitoring,
				"ranging":    region.Ranging,
			}

			if err := tx.Model(&existing).Updates(updateMap).Error; err != nil {
				return err
			}
			region.ID = existing.ID
			region.CreatedAt = existing.CreatedAt
			return nil

		} else if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return tx.Create(region).Error

		} else {
			return result.Error
		}
	})
}

func (r *RegionRepository) FindByIdentifier(ctx context.Context, deviceID, identifier string) (*models.Region, error) {
	var region models.Region
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND identifier = ?", deviceID, identifier).
		First(&region).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRegionNotFound, identifier)
	}
	if err != nil {
		return nil, err
	}
	return &region, nil
}

func (r *RegionRepository) FindByDevice(ctx context.Context, deviceID string) ([]models.Region, error) {
	var regions []models.Region
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("identifier").
		Find(&regions).Error
	return regions, err
}

func (r *RegionRepository) FindMonitored(ctx context.Context, deviceID string) ([]models.Region, error) {
	var regions []models.Region
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND monitoring = ?", deviceID, true).
		Order("identifier").
		Find(&regions).Error
	return regions, err
}

func (r *RegionRepository) FindRanged(ctx context.Context, deviceID string) ([]models.Region, error) {
	var regions []models.Region
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND ranging = ?", deviceID, true).
		Order("identifier").
		Find(&regions).Error
	return regions, err
}

func (r *RegionRepository) Delete(ctx context.Context, deviceID, identifier string) error {
	result := r.db.WithContext(ctx).
		Where("device_id = ? AND identifier = ?", deviceID, identifier).
		Delete(&models.Region{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRegionNotFound, identifier)
	}
	return nil
}
