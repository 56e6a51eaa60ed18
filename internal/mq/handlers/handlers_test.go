package handlers

import (
	"context"
	"errors"
	"testing"

	"beacons-sync/internal/models"
	"beacons-sync/internal/mq"
	"beacons-sync/internal/mq/mqtest"
	"beacons-sync/internal/reconciler"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applyCall struct {
	deviceID string
	batch    models.ObservationBatch
	list     models.ListName
}

type fakeLists struct {
	calls []applyCall
	lists models.BeaconLists
	ended []string
	err   error
}

func (f *fakeLists) Apply(ctx context.Context, deviceID string, batch models.ObservationBatch, list models.ListName) (models.BeaconLists, error) {
	f.calls = append(f.calls, applyCall{deviceID: deviceID, batch: batch, list: list})
	if f.err != nil {
		return nil, f.err
	}
	if f.lists == nil {
		f.lists = models.NewBeaconLists()
	}
	f.lists = reconciler.Reconcile(f.lists, batch, list)
	return f.lists, nil
}

func (f *fakeLists) EndSession(deviceID string) error {
	f.ended = append(f.ended, deviceID)
	return f.err
}

type fakeRestorer struct {
	devices []string
	err     error
}

func (f *fakeRestorer) Restore(ctx context.Context, deviceID string) error {
	f.devices = append(f.devices, deviceID)
	return f.err
}

var topics = mq.NewTopicManager("beacons")

func TestRangingHandlerAndroidPayload(t *testing.T) {
	lists := &fakeLists{}
	handler := NewRangingHandler(topics, lists, zerolog.Nop())

	payload := `{"identifier":"123456","uuid":"7b44b47b-52a1-5381-90c2-f09b6838c5d4","beacons":[
		{"uuid":"AAA","major":1,"minor":2,"rssi":-60,"distance":0.5},
		{"uuid":"BBB","major":"3","minor":4,"rssi":-80,"distance":4.2,"proximity":"far"}]}`
	msg := mqtest.NewMessage("beacons/v1/beacons/phone-1/ranging", []byte(payload))

	require.NoError(t, handler.Process(context.Background(), msg))
	require.Len(t, lists.calls, 1)

	call := lists.calls[0]
	assert.Equal(t, "phone-1", call.deviceID)
	assert.Equal(t, models.RangingList, call.list)
	assert.Equal(t, models.BatchMany, call.batch.Kind())

	observations := call.batch.Observations()
	require.Len(t, observations, 2)
	assert.Equal(t, "123456", observations[0].Identifier)
	assert.Equal(t, "immediate", observations[0].Proximity)
	assert.Equal(t, models.Code("3"), observations[1].Major)
	assert.Equal(t, "far", observations[1].Proximity)
	assert.Equal(t, "beacons/v1/beacons/+/ranging", handler.Topic())
}

func TestRangingHandlerIOSPayload(t *testing.T) {
	lists := &fakeLists{}
	handler := NewRangingHandler(topics, lists, zerolog.Nop())

	payload := `{"region":{"identifier":"lobby","uuid":"X"},"beacons":[
		{"uuid":"AAA","major":1,"minor":2,"rssi":-60,"proximity":"near","accuracy":1.7}]}`
	msg := mqtest.NewMessage("beacons/v1/beacons/ipad/ranging", []byte(payload))

	require.NoError(t, handler.Process(context.Background(), msg))
	require.Len(t, lists.calls, 1)

	observations := lists.calls[0].batch.Observations()
	require.Len(t, observations, 1)
	assert.Equal(t, "lobby", observations[0].Identifier)
	assert.Equal(t, "near", observations[0].Proximity)
	require.NotNil(t, observations[0].Distance)
	assert.InDelta(t, 1.7, *observations[0].Distance, 1e-9)
}

func TestRangingHandlerIgnoresEmptyAndOwnMessages(t *testing.T) {
	lists := &fakeLists{}
	handler := NewRangingHandler(topics, lists, zerolog.Nop())
	topic := "beacons/v1/beacons/phone-1/ranging"

	assert.NoError(t, handler.Process(context.Background(), mqtest.NewMessage(topic, nil)))
	assert.NoError(t, handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(`{"data":{"beacons":[]},"source":"SYNC"}`))))
	assert.Empty(t, lists.calls)
}

func TestRangingHandlerUnwrapsForeignEnvelope(t *testing.T) {
	lists := &fakeLists{}
	handler := NewRangingHandler(topics, lists, zerolog.Nop())

	payload := `{"data":{"identifier":"r","beacons":[{"uuid":"AAA"}]},"source":"APP"}`
	require.NoError(t, handler.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/ranging", []byte(payload))))
	require.Len(t, lists.calls, 1)
	assert.Equal(t, 1, lists.calls[0].batch.Len())
}

func TestRangingHandlerRejectsInvalidPayloads(t *testing.T) {
	lists := &fakeLists{}
	handler := NewRangingHandler(topics, lists, zerolog.Nop())
	topic := "beacons/v1/beacons/phone-1/ranging"

	for _, payload := range []string{`not json`, `{"identifier":"x"}`, `{"beacons":{"uuid":"A"}}`, `[1,2]`} {
		err := handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(payload)))
		assert.ErrorIs(t, err, ErrInvalidMessage, payload)
	}
	assert.Empty(t, lists.calls)

	err := handler.Process(context.Background(), mqtest.NewMessage("beacons/v1/other", []byte(`{}`)))
	assert.Error(t, err)
}

func TestRangingHandlerKeepsSiblingsOfBadMajor(t *testing.T) {
	lists := &fakeLists{}
	handler := NewRangingHandler(topics, lists, zerolog.Nop())

	payload := `{"identifier":"r","beacons":[{"uuid":"A","major":true,"minor":1},{"uuid":"B","major":1,"minor":2}]}`
	require.NoError(t, handler.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/ranging", []byte(payload))))
	require.Len(t, lists.calls, 1)
	assert.Equal(t, 2, lists.calls[0].batch.Len())
	assert.Equal(t, 2, lists.lists.Len(models.RangingList))
}

func TestRangingHandlerPropagatesApplyError(t *testing.T) {
	lists := &fakeLists{err: errors.New("closed")}
	handler := NewRangingHandler(topics, lists, zerolog.Nop())

	err := handler.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/ranging", []byte(`{"beacons":[]}`)))
	assert.ErrorContains(t, err, "closed")
}

func TestTransformMessageNil(t *testing.T) {
	handler := NewRangingHandler(topics, &fakeLists{}, zerolog.Nop())

	_, err := handler.TransformMessage(nil)
	assert.ErrorIs(t, err, ErrMessageIsNil)
}

func TestMonitorHandlers(t *testing.T) {
	lists := &fakeLists{}
	enter := NewMonitorEnterHandler(topics, lists, zerolog.Nop())
	exit := NewMonitorExitHandler(topics, lists, zerolog.Nop())

	region := `{"identifier":"123456","uuid":"7b44b47b-52a1-5381-90c2-f09b6838c5d4","major":0,"minor":0}`
	require.NoError(t, enter.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/monitor/enter", []byte(region))))
	require.NoError(t, enter.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/monitor/enter", []byte(region))))
	require.NoError(t, exit.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/monitor/exit", []byte(region))))

	require.Len(t, lists.calls, 3)
	assert.Equal(t, models.MonitorEnterList, lists.calls[0].list)
	assert.Equal(t, models.BatchSingle, lists.calls[0].batch.Kind())
	assert.Equal(t, models.MonitorExitList, lists.calls[2].list)

	assert.Equal(t, 1, lists.lists.Len(models.MonitorEnterList))
	assert.Equal(t, 1, lists.lists.Len(models.MonitorExitList))
	assert.Equal(t, "beacons/v1/beacons/+/monitor/exit", exit.Topic())
	assert.Equal(t, "beacons/v1/beacons/+/monitor/enter", enter.Topic())
}

func TestMonitorHandlerMalformedPayload(t *testing.T) {
	lists := &fakeLists{}
	enter := NewMonitorEnterHandler(topics, lists, zerolog.Nop())

	err := enter.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/monitor/enter", []byte(`"just a string"`)))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, lists.calls)

	batch, err := enter.TransformMessage(mqtest.NewMessage("beacons/v1/beacons/p/monitor/enter", []byte(`42`)))
	assert.Error(t, err)
	assert.Equal(t, models.BatchMalformed, batch.Kind())
}

func TestMonitorHandlerWrongTopic(t *testing.T) {
	exit := NewMonitorExitHandler(topics, &fakeLists{}, zerolog.Nop())

	err := exit.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/p/monitor/enter", []byte(`{"uuid":"A"}`)))
	assert.Error(t, err)
}

func TestStatusHandlerServiceConnectedRestores(t *testing.T) {
	restorer := &fakeRestorer{}
	lists := &fakeLists{}
	handler := NewStatusHandler(topics, restorer, lists, zerolog.Nop())

	msg := mqtest.NewMessage("beacons/v1/beacons/phone-1/status", []byte(`{"event":"beaconServiceConnected"}`))
	require.NoError(t, handler.Process(context.Background(), msg))
	assert.Equal(t, []string{"phone-1"}, restorer.devices)

	restorer.err = errors.New("db down")
	assert.ErrorContains(t, handler.Process(context.Background(), msg), "db down")
}

func TestStatusHandlerServiceDisconnectedEndsSession(t *testing.T) {
	lists := &fakeLists{}
	handler := NewStatusHandler(topics, &fakeRestorer{}, lists, zerolog.Nop())

	msg := mqtest.NewMessage("beacons/v1/beacons/phone-1/status", []byte(`{"event":"beaconServiceDisconnected"}`))
	require.NoError(t, handler.Process(context.Background(), msg))
	assert.Equal(t, []string{"phone-1"}, lists.ended)
}

func TestStatusHandlerAuthorization(t *testing.T) {
	restorer := &fakeRestorer{}
	handler := NewStatusHandler(topics, restorer, &fakeLists{}, zerolog.Nop())
	topic := "beacons/v1/beacons/ipad/status"

	assert.NoError(t, handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(`{"event":"authorizationStatusDidChange","status":"denied"}`))))
	assert.ErrorIs(t, handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(`{"event":"authorizationStatusDidChange","status":"maybe"}`))), ErrInvalidMessage)
	assert.ErrorIs(t, handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(`{"event":"authorizationStatusDidChange"}`))), ErrInvalidMessage)
	assert.ErrorIs(t, handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(`{"event":"reboot"}`))), ErrInvalidMessage)
	assert.Empty(t, restorer.devices)
}

type regionCall struct {
	action string
	region models.Region
}

type fakeRegions struct {
	deviceID string
	calls    []regionCall
	err      error
}

func (f *fakeRegions) DeviceID() string { return f.deviceID }

func (f *fakeRegions) record(action string, region models.Region) error {
	f.calls = append(f.calls, regionCall{action: action, region: region})
	return f.err
}

func (f *fakeRegions) StartMonitoring(ctx context.Context, region models.Region) error {
	return f.record("startMonitoring", region)
}

func (f *fakeRegions) StopMonitoring(ctx context.Context, region models.Region) error {
	return f.record("stopMonitoring", region)
}

func (f *fakeRegions) StartRanging(ctx context.Context, region models.Region) error {
	return f.record("startRanging", region)
}

func (f *fakeRegions) StopRanging(ctx context.Context, region models.Region) error {
	return f.record("stopRanging", region)
}

func (f *fakeRegions) RequestState(ctx context.Context, region models.Region) error {
	return f.record("requestStateForRegion", region)
}

func TestRegionControlHandlerDispatchesActions(t *testing.T) {
	regions := &fakeRegions{deviceID: "phone-1"}
	handler := NewRegionControlHandler(topics, regions, zerolog.Nop())
	topic := "beacons/v1/beacons/phone-1/regions"

	actions := []string{"startMonitoring", "stopMonitoring", "startRanging", "stopRanging", "requestStateForRegion"}
	for _, action := range actions {
		payload := `{"action":"` + action + `","region":{"identifier":"lobby","uuid":"7b44b47b-52a1-5381-90c2-f09b6838c5d4","major":7}}`
		require.NoError(t, handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(payload))), action)
	}

	require.Len(t, regions.calls, len(actions))
	for i, action := range actions {
		assert.Equal(t, action, regions.calls[i].action)
		assert.Equal(t, "lobby", regions.calls[i].region.Identifier)
		require.NotNil(t, regions.calls[i].region.Major)
		assert.Equal(t, 7, *regions.calls[i].region.Major)
		assert.Nil(t, regions.calls[i].region.Minor)
	}
	assert.Equal(t, "beacons/v1/beacons/+/regions", handler.Topic())
}

func TestRegionControlHandlerRejectsInvalid(t *testing.T) {
	regions := &fakeRegions{deviceID: "phone-1"}
	handler := NewRegionControlHandler(topics, regions, zerolog.Nop())
	topic := "beacons/v1/beacons/phone-1/regions"

	payloads := []string{
		`nope`,
		`{"action":"explode","region":{"identifier":"lobby","uuid":"7b44b47b-52a1-5381-90c2-f09b6838c5d4"}}`,
		`{"action":"startRanging","region":{"identifier":"lobby","uuid":"bad"}}`,
		`{"action":"startRanging","region":{"uuid":"7b44b47b-52a1-5381-90c2-f09b6838c5d4"}}`,
	}
	for _, payload := range payloads {
		err := handler.Process(context.Background(), mqtest.NewMessage(topic, []byte(payload)))
		assert.ErrorIs(t, err, ErrInvalidMessage, payload)
	}
	assert.Empty(t, regions.calls)
}

func TestRegionControlHandlerIgnoresOtherDevices(t *testing.T) {
	regions := &fakeRegions{deviceID: "phone-1"}
	handler := NewRegionControlHandler(topics, regions, zerolog.Nop())

	payload := `{"action":"startRanging","region":{"identifier":"lobby","uuid":"7b44b47b-52a1-5381-90c2-f09b6838c5d4"}}`
	require.NoError(t, handler.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/tablet/regions", []byte(payload))))
	assert.Empty(t, regions.calls)
}

func TestRegionControlHandlerPropagatesServiceError(t *testing.T) {
	regions := &fakeRegions{deviceID: "phone-1", err: errors.New("db down")}
	handler := NewRegionControlHandler(topics, regions, zerolog.Nop())

	payload := `{"action":"startRanging","region":{"identifier":"lobby","uuid":"7b44b47b-52a1-5381-90c2-f09b6838c5d4"}}`
	err := handler.Process(context.Background(), mqtest.NewMessage("beacons/v1/beacons/phone-1/regions", []byte(payload)))
	assert.ErrorContains(t, err, "db down")
}
