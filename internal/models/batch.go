package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedBatch = errors.New("payload is neither an observation nor a list of observations")

type BatchKind uint8

const (
	BatchMalformed BatchKind = iota
	BatchSingle
	BatchMany
)

func (k BatchKind) String() string {
	switch k {
	case BatchSingle:
		return "single"
	case BatchMany:
		return "many"
	default:
		return "malformed"
	}
}

// ObservationBatch is what a native event decodes into. The zero value is a
// malformed batch.
type ObservationBatch struct {
	kind         BatchKind
	observations []BeaconObservation
}

func Single(observation BeaconObservation) ObservationBatch {
	return ObservationBatch{
		kind:         BatchSingle,
		observations: []BeaconObservation{observation},
	}
}

func Many(observations []BeaconObservation) ObservationBatch {
	return ObservationBatch{
		kind:         BatchMany,
		observations: observations,
	}
}

func Malformed() ObservationBatch {
	return ObservationBatch{kind: BatchMalformed}
}

func (b ObservationBatch) Kind() BatchKind {
	return b.kind
}

func (b ObservationBatch) Observations() []BeaconObservation {
	if b.kind == BatchMalformed {
		return nil
	}
	return b.observations
}

func (b ObservationBatch) Len() int {
	return len(b.Observations())
}

// DecodeBatch turns a raw event payload into a batch: an object becomes a
// single observation, an array becomes many. Anything else is malformed and
// the returned error says why.
func DecodeBatch(payload []byte) (ObservationBatch, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Malformed(), ErrMalformedBatch
	}

	switch trimmed[0] {
	case '{':
		var observation BeaconObservation
		if err := json.Unmarshal(trimmed, &observation); err != nil {
			return Malformed(), fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		return Single(observation), nil
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return Malformed(), fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		// an element that is not an observation is dropped, its siblings are kept
		observations := make([]BeaconObservation, 0, len(elements))
		for _, element := range elements {
			var observation BeaconObservation
			if err := json.Unmarshal(element, &observation); err != nil {
				continue
			}
			observations = append(observations, observation)
		}
		return Many(observations), nil
	default:
		return Malformed(), ErrMalformedBatch
	}
}
