package messages

import (
	"fmt"

	"beacons-sync/internal/models"
)

type RegionRef struct {
	Identifier string `json:"identifier"`
	UUID       string `json:"uuid"`
}

// RangingMessage is a beaconsDidRange event. iOS nests the region under
// "region"; Android puts identifier and uuid at the top level.
type RangingMessage struct {
	Identifier string                     `json:"identifier,omitempty"`
	UUID       string                     `json:"uuid,omitempty"`
	Region     *RegionRef                 `json:"region,omitempty"`
	Beacons    []models.BeaconObservation `json:"beacons"`
}

func (m *RangingMessage) RegionIdentifier() string {
	if m.Region != nil && m.Region.Identifier != "" {
		return m.Region.Identifier
	}
	return m.Identifier
}

func (m *RangingMessage) Validate() error {
	if m.Beacons == nil {
		return fmt.Errorf("beacons is required")
	}
	return nil
}

// ToBatch tags every beacon that lacks one with the ranged region's identifier.
func (m *RangingMessage) ToBatch() models.ObservationBatch {
	identifier := m.RegionIdentifier()

	observations := make([]models.BeaconObservation, 0, len(m.Beacons))
	for _, beacon := range m.Beacons {
		if beacon.Identifier == "" {
			beacon.Identifier = identifier
		}
		observations = append(observations, beacon)
	}

	return models.Many(observations)
}

type StatusEvent string

const (
	BeaconServiceConnected       StatusEvent = "beaconServiceConnected"
	BeaconServiceDisconnected    StatusEvent = "beaconServiceDisconnected"
	AuthorizationStatusDidChange StatusEvent = "authorizationStatusDidChange"
)

type StatusMessage struct {
	Event  StatusEvent `json:"event"`
	Status string      `json:"status,omitempty"`
}

func (m *StatusMessage) Validate() error {
	switch m.Event {
	case BeaconServiceConnected, BeaconServiceDisconnected:
		return nil
	case AuthorizationStatusDidChange:
		if m.Status == "" {
			return fmt.Errorf("status is required for %s", m.Event)
		}
		return nil
	default:
		return fmt.Errorf("unknown status event %q", m.Event)
	}
}

type RegionAction string

const (
	StartMonitoring       RegionAction = "startMonitoring"
	StopMonitoring        RegionAction = "stopMonitoring"
	StartRanging          RegionAction = "startRanging"
	StopRanging           RegionAction = "stopRanging"
	RequestStateForRegion RegionAction = "requestStateForRegion"
)

// RegionControlMessage asks for a region to be started, stopped or queried on a device.
type RegionControlMessage struct {
	Action RegionAction  `json:"action"`
	Region models.Region `json:"region"`
}

func (m *RegionControlMessage) Validate() error {
	switch m.Action {
	case StartMonitoring, StopMonitoring, StartRanging, StopRanging, RequestStateForRegion:
	default:
		return fmt.Errorf("unknown region action %q", m.Action)
	}
	return m.Region.Validate()
}
