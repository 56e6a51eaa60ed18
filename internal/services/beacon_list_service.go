package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/models"
	"beacons-sync/internal/reconciler"

	"github.com/rs/zerolog"
)

type ObservationWriter interface {
	WriteObservations(ctx context.Context, deviceID string, list models.ListName, observations []models.BeaconObservation) error
}

type ListsTopics interface {
	GetListsTopic(deviceID string) string
}

// ListsMessage is what UI clients receive on a device's lists topic.
type ListsMessage struct {
	DeviceID string           `json:"device_id"`
	Sections []models.Section `json:"sections"`
}

type session struct {
	mu    sync.Mutex
	lists atomic.Pointer[models.BeaconLists]
	// ended is guarded by mu
	ended bool
}

// BeaconListService owns the beacon lists of every device session. Updates to one
// session are applied one at a time; readers get the latest snapshot without
// waiting on writers.
type BeaconListService struct {
	publisher  interfaces.IMqPublisher
	topics     ListsTopics
	writer     ObservationWriter
	timeFormat string
	now        func() time.Time
	logger     zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewBeaconListService(
	publisher interfaces.IMqPublisher,
	topics ListsTopics,
	writer ObservationWriter,
	timeFormat string,
	logger zerolog.Logger,
) *BeaconListService {
	return &BeaconListService{
		publisher:  publisher,
		topics:     topics,
		writer:     writer,
		timeFormat: timeFormat,
		now:        time.Now,
		logger:     logger,
		sessions:   make(map[string]*session),
	}
}

func (s *BeaconListService) session(deviceID string, create bool) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[deviceID]
	if !ok && create {
		sess = &session{}
		initial := models.NewBeaconLists()
		sess.lists.Store(&initial)
		s.sessions[deviceID] = sess
	}
	return sess
}

// Apply stamps the batch with the receive time, reconciles it into the device's
// target list and publishes the result. Publishing and time series failures are
// logged and do not fail the update.
func (s *BeaconListService) Apply(ctx context.Context, deviceID string, batch models.ObservationBatch, list models.ListName) (models.BeaconLists, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("apply for device %s aborted: %w", deviceID, err)
	}

	if batch.Kind() == models.BatchMalformed || !list.IsValid() {
		s.logger.Debug().
			Str("device_id", deviceID).
			Str("list", string(list)).
			Str("kind", batch.Kind().String()).
			Msg("Nothing to apply")
		return s.Snapshot(deviceID), nil
	}

	stamped := s.stamp(batch)

	for {
		// a session ended between lookup and commit is replaced by a fresh one
		if next, ok := s.commit(s.session(deviceID, true), deviceID, stamped, list); ok {
			s.write(ctx, deviceID, list, stamped.Observations())
			return next.Clone(), nil
		}
	}
}

// commit reconciles the batch into the session and publishes the result. It reports
// false without touching anything when the session has already ended.
func (s *BeaconListService) commit(sess *session, deviceID string, stamped models.ObservationBatch, list models.ListName) (models.BeaconLists, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.ended {
		return nil, false
	}

	next := reconciler.Reconcile(*sess.lists.Load(), stamped, list)
	sess.lists.Store(&next)
	// published under the lock so the retained snapshot is never older than the stored one
	s.publish(deviceID, next)
	return next, true
}

func (s *BeaconListService) stamp(batch models.ObservationBatch) models.ObservationBatch {
	timestamp := s.now().Format(s.timeFormat)

	observations := batch.Observations()
	stamped := make([]models.BeaconObservation, 0, len(observations))
	for _, observation := range observations {
		observation = observation.Clone()
		observation.Time = timestamp
		stamped = append(stamped, observation)
	}

	if batch.Kind() == models.BatchSingle && len(stamped) == 1 {
		return models.Single(stamped[0])
	}
	return models.Many(stamped)
}

func (s *BeaconListService) publish(deviceID string, lists models.BeaconLists) {
	if s.publisher == nil {
		return
	}

	message := ListsMessage{DeviceID: deviceID, Sections: lists.Sections()}
	if err := s.publisher.PublishJSON(s.topics.GetListsTopic(deviceID), message, true); err != nil {
		s.logger.Error().Err(err).
			Str("device_id", deviceID).
			Msg("Failed to publish beacon lists")
	}
}

func (s *BeaconListService) write(ctx context.Context, deviceID string, list models.ListName, observations []models.BeaconObservation) {
	if s.writer == nil || len(observations) == 0 {
		return
	}

	if err := s.writer.WriteObservations(ctx, deviceID, list, observations); err != nil {
		s.logger.Error().Err(err).
			Str("device_id", deviceID).
			Str("list", string(list)).
			Int("observations", len(observations)).
			Msg("Failed to write observations to InfluxDB")
	}
}

// Snapshot returns the device's current lists, or empty lists for an unknown device.
func (s *BeaconListService) Snapshot(deviceID string) models.BeaconLists {
	sess := s.session(deviceID, false)
	if sess == nil {
		return models.NewBeaconLists()
	}
	return (*sess.lists.Load()).Clone()
}

func (s *BeaconListService) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]string, 0, len(s.sessions))
	for deviceID := range s.sessions {
		devices = append(devices, deviceID)
	}
	sort.Strings(devices)
	return devices
}

// EndSession discards the device's lists and clears its retained snapshot. The
// session map stays locked until the clear is sent, so a new session for the same
// device cannot publish ahead of it.
func (s *BeaconListService) EndSession(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[deviceID]
	if !ok {
		return nil
	}
	delete(s.sessions, deviceID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.ended = true

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.ClearRetained(s.topics.GetListsTopic(deviceID)); err != nil {
		return fmt.Errorf("failed to clear lists of device %s: %w", deviceID, err)
	}

	s.logger.Info().Str("device_id", deviceID).Msg("Session ended")
	return nil
}
