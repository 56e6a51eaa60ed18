package components

import (
	"strings"
	"time"

	"beacons-sync/internal/config/shared"
	"beacons-sync/internal/interfaces"

	"github.com/google/uuid"
)

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

type BeaconConfig interface {
	interfaces.Config
	IsAndroid() bool
}

type BeaconConfigImpl struct {
	Platform                    string        `json:"platform"`
	DeviceID                    string        `json:"device_id"`
	RegionIdentifier            string        `json:"region_identifier"`
	RegionUUID                  string        `json:"region_uuid"`
	Parsers                     []string      `json:"parsers"`
	ForegroundScanPeriod        time.Duration `json:"foreground_scan_period"`
	BackgroundScanPeriod        time.Duration `json:"background_scan_period"`
	BackgroundBetweenScanPeriod time.Duration `json:"background_between_scan_period"`
	DropEmptyRanges             bool          `json:"drop_empty_ranges"`
	BackgroundLocationUpdates   bool          `json:"background_location_updates"`
}

func NewBeaconConfig() BeaconConfigImpl {
	config := BeaconConfigImpl{}
	config.Load()
	config.SetDefaults()
	return config
}

func (B *BeaconConfigImpl) Load() {
	B.Platform = strings.ToLower(shared.GetEnv("BEACON_PLATFORM"))
	B.DeviceID = shared.GetEnv("BEACON_DEVICE_ID")
	B.RegionIdentifier = shared.GetEnv("BEACON_REGION_IDENTIFIER")
	B.RegionUUID = shared.GetEnv("BEACON_REGION_UUID")
	B.Parsers = shared.GetEnvAsList("BEACON_PARSERS")
	B.ForegroundScanPeriod = shared.GetEnvAsDuration("BEACON_FOREGROUND_SCAN_PERIOD")
	B.BackgroundScanPeriod = shared.GetEnvAsDuration("BEACON_BACKGROUND_SCAN_PERIOD")
	B.BackgroundBetweenScanPeriod = shared.GetEnvAsDuration("BEACON_BACKGROUND_BETWEEN_SCAN_PERIOD")
	B.DropEmptyRanges = shared.GetEnvAsBool("BEACON_DROP_EMPTY_RANGES", false)
	B.BackgroundLocationUpdates = shared.GetEnvAsBool("BEACON_BACKGROUND_LOCATION_UPDATES", false)
}

func (B *BeaconConfigImpl) SetDefaults() {
	if B.Platform == "" {
		B.Platform = PlatformAndroid
	}
	if B.DeviceID == "" {
		B.DeviceID = "default"
	}
	if B.RegionIdentifier == "" {
		B.RegionIdentifier = "123456"
	}
	if B.RegionUUID == "" {
		B.RegionUUID = "7b44b47b-52a1-5381-90c2-f09b6838c5d4"
	}
	if len(B.Parsers) == 0 {
		B.Parsers = []string{"ibeacon"}
	}
	if B.ForegroundScanPeriod == 0 {
		B.ForegroundScanPeriod = 1100 * time.Millisecond
	}
	if B.BackgroundScanPeriod == 0 {
		B.BackgroundScanPeriod = 10 * time.Second
	}
	if B.BackgroundBetweenScanPeriod == 0 {
		B.BackgroundBetweenScanPeriod = 5 * time.Minute
	}
}

func (B *BeaconConfigImpl) Validate() error {
	if B.Platform != PlatformAndroid && B.Platform != PlatformIOS {
		return shared.NewConfigError("beacon", "platform", B.Platform, "must be android or ios")
	}

	if B.DeviceID == "" || strings.ContainsAny(B.DeviceID, "/+#") {
		return shared.NewConfigError("beacon", "device_id", B.DeviceID, "must be a single topic level")
	}

	if B.RegionIdentifier == "" {
		return shared.NewConfigError("beacon", "region_identifier", nil, "is required")
	}

	if _, err := uuid.Parse(B.RegionUUID); err != nil {
		return shared.NewConfigError("beacon", "region_uuid", B.RegionUUID, "must be a valid uuid")
	}

	if B.ForegroundScanPeriod < 0 || B.BackgroundScanPeriod < 0 || B.BackgroundBetweenScanPeriod < 0 {
		return shared.NewConfigError("beacon", "scan_period", nil, "cannot be negative")
	}

	return nil
}

func (B *BeaconConfigImpl) IsAndroid() bool {
	return B.Platform == PlatformAndroid
}

var _ BeaconConfig = (*BeaconConfigImpl)(nil)
