package services

import (
	"context"
	"errors"
	"fmt"

	"beacons-sync/internal/bridge"
	"beacons-sync/internal/config/components"
	"beacons-sync/internal/database/postgres/repositories"
	"beacons-sync/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const restoreConcurrency = 4

type RegionStore interface {
	CreateOrUpdate(ctx context.Context, region *models.Region) error
	FindByIdentifier(ctx context.Context, deviceID, identifier string) (*models.Region, error)
	FindByDevice(ctx context.Context, deviceID string) ([]models.Region, error)
	FindMonitored(ctx context.Context, deviceID string) ([]models.Region, error)
	FindRanged(ctx context.Context, deviceID string) ([]models.Region, error)
	Delete(ctx context.Context, deviceID, identifier string) error
}

// RegionService keeps the registry of monitored and ranged regions for the
// bridged device and drives the bridge from it.
type RegionService struct {
	store  RegionStore
	bridge bridge.Manager
	config components.BeaconConfigImpl
	logger zerolog.Logger
}

func NewRegionService(store RegionStore, manager bridge.Manager, cfg components.BeaconConfigImpl, logger zerolog.Logger) *RegionService {
	return &RegionService{
		store:  store,
		bridge: manager,
		config: cfg,
		logger: logger,
	}
}

// DeviceID is the device whose regions this service manages.
func (s *RegionService) DeviceID() string {
	return s.bridge.DeviceID()
}

// load returns the stored region with the given identity, or the target itself when
// nothing is stored yet.
func (s *RegionService) load(ctx context.Context, region models.Region) (models.Region, bool, error) {
	target := region.Target()
	target.DeviceID = s.DeviceID()

	existing, err := s.store.FindByIdentifier(ctx, target.DeviceID, target.Identifier)
	if errors.Is(err, repositories.ErrRegionNotFound) {
		return target, false, nil
	}
	if err != nil {
		return models.Region{}, false, fmt.Errorf("failed to load region %s: %w", target.Identifier, err)
	}

	target.ID = existing.ID
	target.CreatedAt = existing.CreatedAt
	target.Monitoring = existing.Monitoring
	target.Ranging = existing.Ranging
	return target, true, nil
}

func (s *RegionService) save(ctx context.Context, region *models.Region, stored bool) error {
	if region.IsActive() {
		if err := s.store.CreateOrUpdate(ctx, region); err != nil {
			return fmt.Errorf("error saving region %s: %w", region.Identifier, err)
		}
		return nil
	}

	if !stored {
		return nil
	}
	if err := s.store.Delete(ctx, region.DeviceID, region.Identifier); err != nil && !errors.Is(err, repositories.ErrRegionNotFound) {
		return fmt.Errorf("error deleting region %s: %w", region.Identifier, err)
	}
	return nil
}

// revert puts back the stored state after a bridge command failed, so the registry
// only holds what the device was actually told to run.
func (s *RegionService) revert(ctx context.Context, region *models.Region, cause error) error {
	if err := s.save(ctx, region, true); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to revert region %s: %w", region.Identifier, err))
	}
	return cause
}

func (s *RegionService) StartMonitoring(ctx context.Context, region models.Region) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}

	current, stored, err := s.load(ctx, region)
	if err != nil {
		return err
	}
	previous := current.Monitoring
	current.Monitoring = true
	if err := s.save(ctx, &current, stored); err != nil {
		return err
	}

	if err := s.bridge.StartMonitoringForRegion(ctx, current); err != nil {
		current.Monitoring = previous
		return s.revert(ctx, &current, err)
	}

	s.logger.Info().
		Str("device_id", current.DeviceID).
		Str("region", current.String()).
		Msg("Monitoring started")
	return nil
}

// StopMonitoring stops the bridge first, then drops the monitoring flag. A region
// that is neither monitored nor ranged is removed from the registry.
func (s *RegionService) StopMonitoring(ctx context.Context, region models.Region) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}

	current, stored, err := s.load(ctx, region)
	if err != nil {
		return err
	}

	if err := s.bridge.StopMonitoringForRegion(ctx, current); err != nil {
		return err
	}

	current.Monitoring = false
	if err := s.save(ctx, &current, stored); err != nil {
		return err
	}

	s.logger.Info().
		Str("device_id", current.DeviceID).
		Str("region", current.String()).
		Msg("Monitoring stopped")
	return nil
}

func (s *RegionService) StartRanging(ctx context.Context, region models.Region) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}

	current, stored, err := s.load(ctx, region)
	if err != nil {
		return err
	}
	previous := current.Ranging
	current.Ranging = true
	if err := s.save(ctx, &current, stored); err != nil {
		return err
	}

	if err := s.bridge.StartRangingBeaconsInRegion(ctx, current); err != nil {
		current.Ranging = previous
		return s.revert(ctx, &current, err)
	}

	s.logger.Info().
		Str("device_id", current.DeviceID).
		Str("region", current.String()).
		Msg("Ranging started")
	return nil
}

func (s *RegionService) StopRanging(ctx context.Context, region models.Region) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}

	current, stored, err := s.load(ctx, region)
	if err != nil {
		return err
	}

	if err := s.bridge.StopRangingBeaconsInRegion(ctx, current); err != nil {
		return err
	}

	current.Ranging = false
	if err := s.save(ctx, &current, stored); err != nil {
		return err
	}

	s.logger.Info().
		Str("device_id", current.DeviceID).
		Str("region", current.String()).
		Msg("Ranging stopped")
	return nil
}

func (s *RegionService) RequestState(ctx context.Context, region models.Region) error {
	if err := region.Validate(); err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}
	return s.bridge.RequestStateForRegion(ctx, region.Target())
}

func (s *RegionService) MonitoredRegions(ctx context.Context) ([]models.Region, error) {
	return s.store.FindMonitored(ctx, s.DeviceID())
}

func (s *RegionService) RangedRegions(ctx context.Context) ([]models.Region, error) {
	return s.store.FindRanged(ctx, s.DeviceID())
}

// Bootstrap seeds the registry with the configured region when the device has none.
func (s *RegionService) Bootstrap(ctx context.Context) error {
	regions, err := s.store.FindByDevice(ctx, s.DeviceID())
	if err != nil {
		return fmt.Errorf("failed to load regions: %w", err)
	}
	if len(regions) > 0 {
		return nil
	}

	region := models.Region{
		DeviceID:   s.DeviceID(),
		Identifier: s.config.RegionIdentifier,
		UUID:       s.config.RegionUUID,
		Monitoring: true,
		Ranging:    true,
	}
	if err := region.Validate(); err != nil {
		return fmt.Errorf("invalid default region: %w", err)
	}
	if err := s.store.CreateOrUpdate(ctx, &region); err != nil {
		return fmt.Errorf("error saving default region: %w", err)
	}

	s.logger.Info().
		Str("device_id", region.DeviceID).
		Str("region", region.String()).
		Msg("Default region registered")
	return nil
}

// Restore configures the device's beacon module and re-issues the start commands for
// every persisted region. Devices other than the bridged one are ignored.
func (s *RegionService) Restore(ctx context.Context, deviceID string) error {
	if deviceID != s.DeviceID() {
		s.logger.Debug().
			Str("device_id", deviceID).
			Str("bridged_device_id", s.DeviceID()).
			Msg("Skipping restore for unbridged device")
		return nil
	}

	if err := s.bridge.Configure(ctx, s.config); err != nil {
		return fmt.Errorf("failed to configure device %s: %w", deviceID, err)
	}

	regions, err := s.store.FindByDevice(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to load regions: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(restoreConcurrency)
	for _, region := range regions {
		region := region
		if region.Monitoring {
			g.Go(func() error {
				return s.bridge.StartMonitoringForRegion(gctx, region)
			})
		}
		if region.Ranging {
			g.Go(func() error {
				return s.bridge.StartRangingBeaconsInRegion(gctx, region)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to restore regions of device %s: %w", deviceID, err)
	}

	s.logger.Info().
		Str("device_id", deviceID).
		Int("regions", len(regions)).
		Msg("Regions restored")
	return nil
}

// Forget stops whatever the bridge still runs for a region that left the registry.
func (s *RegionService) Forget(ctx context.Context, region models.Region) error {
	if region.DeviceID != s.DeviceID() {
		return nil
	}

	var errs []error
	for _, monitored := range s.bridge.MonitoredRegions() {
		if monitored.Identifier == region.Identifier {
			errs = append(errs, s.bridge.StopMonitoringForRegion(ctx, monitored))
		}
	}
	for _, ranged := range s.bridge.RangedRegions() {
		if ranged.Identifier == region.Identifier {
			errs = append(errs, s.bridge.StopRangingBeaconsInRegion(ctx, ranged))
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every region the bridge is running. The registry is left intact so
// the regions come back on the next restore.
func (s *RegionService) StopAll(ctx context.Context) error {
	var errs []error
	for _, region := range s.bridge.MonitoredRegions() {
		if err := s.bridge.StopMonitoringForRegion(ctx, region); err != nil {
			errs = append(errs, err)
		}
	}
	for _, region := range s.bridge.RangedRegions() {
		if err := s.bridge.StopRangingBeaconsInRegion(ctx, region); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
