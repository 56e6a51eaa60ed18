package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Code is a major or minor value exactly as the bridge delivered it. Native
// modules send numbers, numeric strings, empty strings or nothing, so the raw
// text is kept for display and only normalized for identity.
type Code string

func CodeOf(v int) Code {
	return Code(strconv.Itoa(v))
}

// UnmarshalJSON keeps numbers and strings verbatim. Any other JSON value is
// treated as absent so one bad field never fails the surrounding batch.
func (c *Code) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		*c = ""
		return nil
	}
	*c = Code(n.String())
	return nil
}

func (c Code) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(c), 64); err == nil && json.Valid([]byte(c)) {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

// Int reads the leading decimal digits of the value, so "7", "7.0" and "7 dBm"
// are all 7. Anything that does not start with a positive integer is 0, which
// makes an explicit 0 and an absent value the same identity.
func (c Code) Int() int {
	s := strings.TrimPrefix(strings.TrimSpace(string(c)), "+")

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	v, err := strconv.Atoi(s[:end])
	if err != nil || v <= 0 {
		return 0
	}
	return v
}

type Identity struct {
	UUID  string
	Major int
	Minor int
}

func (i Identity) Key() string {
	return strings.ToUpper(fmt.Sprintf("%s:%d:%d", i.UUID, i.Major, i.Minor))
}

type BeaconObservation struct {
	UUID       string   `json:"uuid"`
	Major      Code     `json:"major,omitempty"`
	Minor      Code     `json:"minor,omitempty"`
	Identifier string   `json:"identifier,omitempty"`
	RSSI       *int     `json:"rssi,omitempty"`
	Proximity  string   `json:"proximity,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Time       string   `json:"time,omitempty"`
}

// UnmarshalJSON accepts both bridge dialects: iOS reports "accuracy" where
// Android reports "distance", and only Android derives a proximity.
func (o *BeaconObservation) UnmarshalJSON(data []byte) error {
	type plain BeaconObservation
	var wire struct {
		plain
		Accuracy *float64 `json:"accuracy"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*o = BeaconObservation(wire.plain)
	if o.Distance == nil && wire.Accuracy != nil {
		o.Distance = wire.Accuracy
	}
	if o.Proximity == "" && o.Distance != nil {
		o.Proximity = ProximityFromDistance(*o.Distance)
	}
	return nil
}

// HasIdentity reports whether the observation carries a uuid. A blank uuid is no
// beacon at all, so whitespace counts as missing.
func (o BeaconObservation) HasIdentity() bool {
	return strings.TrimSpace(o.UUID) != ""
}

func (o BeaconObservation) Identity() Identity {
	return Identity{
		UUID:  strings.ToUpper(o.UUID),
		Major: o.Major.Int(),
		Minor: o.Minor.Int(),
	}
}

func (o BeaconObservation) Clone() BeaconObservation {
	clone := o
	if o.RSSI != nil {
		rssi := *o.RSSI
		clone.RSSI = &rssi
	}
	if o.Distance != nil {
		distance := *o.Distance
		clone.Distance = &distance
	}
	return clone
}

func ProximityFromDistance(distance float64) string {
	switch {
	case distance == -1.0:
		return "unknown"
	case distance < 1:
		return "immediate"
	case distance < 3:
		return "near"
	default:
		return "far"
	}
}
