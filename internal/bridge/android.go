package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"beacons-sync/internal/config/components"
	"beacons-sync/internal/models"
)

// Beacon layouts understood by the AltBeacon library.
const (
	ParserIBeacon      = "m:0-3=4c000215,i:4-19,i:20-21,i:22-23,p:24-24"
	ParserEstimote     = "m:2-3=0215,i:4-19,i:20-21,i:22-23,p:24-24"
	ParserAltBeacon    = "m:2-3=beac,i:4-19,i:20-21,i:22-23,p:24-24,d:25-25"
	ParserEddystoneTLM = "x,s:0-1=feaa,m:2-2=20,d:3-3,d:4-5,d:6-7,d:8-11,d:12-15"
	ParserEddystoneUID = "s:0-1=feaa,m:2-2=00,p:3-3:-41,i:4-13,i:14-19"
	ParserEddystoneURL = "s:0-1=feaa,m:2-2=10,p:3-3:-41,i:4-20v"
)

const unsetRegionCode = -1

var parsersByName = map[string]string{
	"ibeacon":       ParserIBeacon,
	"estimote":      ParserEstimote,
	"altbeacon":     ParserAltBeacon,
	"eddystone_tlm": ParserEddystoneTLM,
	"eddystone_uid": ParserEddystoneUID,
	"eddystone_url": ParserEddystoneURL,
}

// ParserLayout resolves a parser name such as "eddystone_uid" to its layout.
func ParserLayout(name string) (string, bool) {
	layout, ok := parsersByName[strings.ToLower(strings.TrimSpace(name))]
	return layout, ok
}

type RssiFilter string

const (
	ArmaRssiFilter       RssiFilter = "ARMA_RSSI_FILTER"
	RunningAvgRssiFilter RssiFilter = "RUNNING_AVG_RSSI_FILTER"
)

var transmissionSupport = []string{
	"SUPPORTED",
	"NOT_SUPPORTED_MIN_SDK",
	"NOT_SUPPORTED_BLE",
	"DEPRECATED_NOT_SUPPORTED_MULTIPLE_ADVERTISEMENTS",
	"NOT_SUPPORTED_CANNOT_GET_ADVERTISER",
	"NOT_SUPPORTED_CANNOT_GET_ADVERTISER_MULTIPLE_ADVERTISEMENTS",
}

// TransmissionSupport names a checkTransmissionSupported status code.
func TransmissionSupport(status int) (string, error) {
	if status < 0 || status >= len(transmissionSupport) {
		return "", fmt.Errorf("unknown transmission support status %d", status)
	}
	return transmissionSupport[status], nil
}

// Android drives the AltBeacon based module.
type Android struct {
	*commander
}

func (a *Android) Platform() Platform {
	return PlatformAndroid
}

func (a *Android) Configure(ctx context.Context, cfg components.BeaconConfigImpl) error {
	if err := a.AddParsersListToDetection(ctx, cfg.Parsers); err != nil {
		return err
	}
	if err := a.SetForegroundScanPeriod(ctx, cfg.ForegroundScanPeriod); err != nil {
		return err
	}
	if err := a.SetBackgroundScanPeriod(ctx, cfg.BackgroundScanPeriod); err != nil {
		return err
	}
	return a.SetBackgroundBetweenScanPeriod(ctx, cfg.BackgroundBetweenScanPeriod)
}

// regionCode maps an absent or zero major/minor to -1, which the module reads as "any".
func regionCode(code *int) int {
	if code == nil || *code == 0 {
		return unsetRegionCode
	}
	return *code
}

func (a *Android) StartMonitoringForRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	if err := a.send(ctx, "startMonitoring", region.Identifier, region.UUID, regionCode(region.Minor), regionCode(region.Major)); err != nil {
		return err
	}
	a.track(a.monitored, region)
	return nil
}

func (a *Android) StopMonitoringForRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	if err := a.send(ctx, "stopMonitoring", region.Identifier, region.UUID, regionCode(region.Minor), regionCode(region.Major)); err != nil {
		return err
	}
	a.untrack(a.monitored, region)
	return nil
}

// StartRangingBeaconsInRegion only needs the identifier; the uuid is optional on Android.
func (a *Android) StartRangingBeaconsInRegion(ctx context.Context, region models.Region) error {
	if region.Identifier == "" {
		return fmt.Errorf("invalid region: identifier is required")
	}
	if err := a.send(ctx, "startRanging", region.Identifier, region.UUID); err != nil {
		return err
	}
	a.track(a.ranged, region)
	return nil
}

func (a *Android) StopRangingBeaconsInRegion(ctx context.Context, region models.Region) error {
	if region.Identifier == "" {
		return fmt.Errorf("invalid region: identifier is required")
	}
	if err := a.send(ctx, "stopRanging", region.Identifier, region.UUID); err != nil {
		return err
	}
	a.untrack(a.ranged, region)
	return nil
}

func (a *Android) RequestStateForRegion(ctx context.Context, region models.Region) error {
	if err := validate(region); err != nil {
		return err
	}
	return a.send(ctx, "requestStateForRegion", region.Identifier, region.UUID, regionCode(region.Minor), regionCode(region.Major))
}

func (a *Android) AddParser(ctx context.Context, layout string) error {
	return a.send(ctx, "addParser", layout)
}

func (a *Android) RemoveParser(ctx context.Context, layout string) error {
	return a.send(ctx, "removeParser", layout)
}

// AddParsersListToDetection accepts parser names or raw layouts.
func (a *Android) AddParsersListToDetection(ctx context.Context, parsers []string) error {
	for _, parser := range parsers {
		if err := a.AddParser(ctx, resolveParser(parser)); err != nil {
			return err
		}
	}
	return nil
}

func (a *Android) RemoveParsersListToDetection(ctx context.Context, parsers []string) error {
	for _, parser := range parsers {
		if err := a.RemoveParser(ctx, resolveParser(parser)); err != nil {
			return err
		}
	}
	return nil
}

func resolveParser(parser string) string {
	if layout, ok := ParserLayout(parser); ok {
		return layout
	}
	return parser
}

func (a *Android) SetForegroundScanPeriod(ctx context.Context, period time.Duration) error {
	return a.send(ctx, "setForegroundScanPeriod", period.Milliseconds())
}

func (a *Android) SetBackgroundScanPeriod(ctx context.Context, period time.Duration) error {
	return a.send(ctx, "setBackgroundScanPeriod", period.Milliseconds())
}

func (a *Android) SetBackgroundBetweenScanPeriod(ctx context.Context, period time.Duration) error {
	return a.send(ctx, "setBackgroundBetweenScanPeriod", period.Milliseconds())
}

func (a *Android) SetRssiFilter(ctx context.Context, filter RssiFilter, avgModifier float64) error {
	if filter != ArmaRssiFilter && filter != RunningAvgRssiFilter {
		return fmt.Errorf("unknown rssi filter %q", filter)
	}
	return a.send(ctx, "setRssiFilter", string(filter), avgModifier)
}

func (a *Android) SetHardwareEqualityEnforced(ctx context.Context, enforced bool) error {
	return a.send(ctx, "setHardwareEqualityEnforced", enforced)
}

func (a *Android) CheckTransmissionSupported(ctx context.Context) error {
	return a.send(ctx, "checkTransmissionSupported")
}

var _ Manager = (*Android)(nil)
