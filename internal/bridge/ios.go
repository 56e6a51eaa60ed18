package bridge

import (
	"context"
	"fmt"

	"beacons-sync/internal/config/components"
	"beacons-sync/internal/models"
)

type AuthorizationStatus string

const (
	AuthorizedAlways    AuthorizationStatus = "authorizedAlways"
	AuthorizedWhenInUse AuthorizationStatus = "authorizedWhenInUse"
	Denied              AuthorizationStatus = "denied"
	NotDetermined       AuthorizationStatus = "notDetermined"
	Restricted          AuthorizationStatus = "restricted"
)

func ParseAuthorizationStatus(status string) (AuthorizationStatus, error) {
	switch s := AuthorizationStatus(status); s {
	case AuthorizedAlways, AuthorizedWhenInUse, Denied, NotDetermined, Restricted:
		return s, nil
	default:
		return "", fmt.Errorf("unknown authorization status %q", status)
	}
}

// CanRange reports whether the device may range beacons with this status.
func (s AuthorizationStatus) CanRange() bool {
	return s == AuthorizedAlways || s == AuthorizedWhenInUse
}

// IOS drives the CoreLocation based module, which takes whole region objects.
type IOS struct {
	*commander
}

func (i *IOS) Platform() Platform {
	return PlatformIOS
}

func (i *IOS) Configure(ctx context.Context, cfg components.BeaconConfigImpl) error {
	if err := i.RequestAlwaysAuthorization(ctx); err != nil {
		return err
	}
	if err := i.ShouldDropEmptyRanges(ctx, cfg.DropEmptyRanges); err != nil {
		return err
	}
	return i.AllowsBackgroundLocationUpdates(ctx, cfg.BackgroundLocationUpdates)
}

func (i *IOS) StartMonitoringForRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	if err := i.send(ctx, "startMonitoringForRegion", region.Target()); err != nil {
		return err
	}
	i.track(i.monitored, region)
	return nil
}

func (i *IOS) StopMonitoringForRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	if err := i.send(ctx, "stopMonitoringForRegion", region.Target()); err != nil {
		return err
	}
	i.untrack(i.monitored, region)
	return nil
}

func (i *IOS) StartRangingBeaconsInRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	if err := i.send(ctx, "startRangingBeaconsInRegion", region.Target()); err != nil {
		return err
	}
	i.track(i.ranged, region)
	return nil
}

func (i *IOS) StopRangingBeaconsInRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	if err := i.send(ctx, "stopRangingBeaconsInRegion", region.Target()); err != nil {
		return err
	}
	i.untrack(i.ranged, region)
	return nil
}

func (i *IOS) RequestStateForRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	return i.send(ctx, "requestStateForRegion", region.Target())
}

func (i *IOS) RequestAlwaysAuthorization(ctx context.Context) error {
	return i.send(ctx, "requestAlwaysAuthorization")
}

func (i *IOS) RequestWhenInUseAuthorization(ctx context.Context) error {
	return i.send(ctx, "requestWhenInUseAuthorization")
}

// GetAuthorizationStatus asks the device to report its status on the status topic.
func (i *IOS) GetAuthorizationStatus(ctx context.Context) error {
	return i.send(ctx, "getAuthorizationStatus")
}

func (i *IOS) AllowsBackgroundLocationUpdates(ctx context.Context, allow bool) error {
	return i.send(ctx, "allowsBackgroundLocationUpdates", allow)
}

func (i *IOS) StartUpdatingLocation(ctx context.Context) error {
	return i.send(ctx, "startUpdatingLocation")
}

func (i *IOS) StopUpdatingLocation(ctx context.Context) error {
	return i.send(ctx, "stopUpdatingLocation")
}

func (i *IOS) ShouldDropEmptyRanges(ctx context.Context, drop bool) error {
	return i.send(ctx, "shouldDropEmptyRanges", drop)
}

var _ Manager = (*IOS)(nil)
