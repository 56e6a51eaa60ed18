package listeners

import (
	"context"
	"errors"
	"testing"
	"time"

	"beacons-sync/internal/interfaces"
	"beacons-sync/internal/models"
	"beacons-sync/internal/mq"
	"beacons-sync/internal/mq/mqtest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	*BaseTableListener
	events []*interfaces.TableChangeEvent
	err    error
}

func (r *recordingListener) HandleChange(ctx context.Context, event *interfaces.TableChangeEvent) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	r.events = append(r.events, event)
	return r.err
}

type fakeForgetter struct {
	forgotten []models.Region
	err       error
}

func (f *fakeForgetter) Forget(ctx context.Context, region models.Region) error {
	f.forgotten = append(f.forgotten, region)
	return f.err
}

func TestBaseTableListener(t *testing.T) {
	base := NewBaseTableListener("regions")
	assert.Equal(t, "regions", base.GetTableName())
	assert.Equal(t, "table_events", base.GetChannelName())
}

func TestHandleNotificationDispatchesByTable(t *testing.T) {
	lm := newListenerManager(nil, time.Second, zerolog.Nop())
	defer lm.Stop()

	first := &recordingListener{BaseTableListener: NewBaseTableListener("regions"), err: errors.New("boom")}
	second := &recordingListener{BaseTableListener: NewBaseTableListener("regions")}
	other := &recordingListener{BaseTableListener: NewBaseTableListener("devices")}

	require.NoError(t, lm.RegisterListener(first))
	require.NoError(t, lm.RegisterListener(second))
	require.NoError(t, lm.RegisterListener(other))

	lm.handleNotification(`{"operation":"INSERT","table":"regions","new_data":{"identifier":"a"},"timestamp":"2026-01-02T03:04:05Z"}`)

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1, "an erroring listener must not stop the next one")
	assert.Empty(t, other.events)
	assert.Equal(t, interfaces.InsertOperation, second.events[0].Operation)
	assert.Equal(t, "a", second.events[0].NewData["identifier"])
}

func TestHandleNotificationIgnoresGarbage(t *testing.T) {
	lm := newListenerManager(nil, time.Second, zerolog.Nop())
	defer lm.Stop()

	listener := &recordingListener{BaseTableListener: NewBaseTableListener("regions")}
	require.NoError(t, lm.RegisterListener(listener))

	lm.handleNotification("not json")
	lm.handleNotification(`{"operation":"INSERT","table":"unknown"}`)

	assert.Empty(t, listener.events)
}

func regionRowData(monitoring, ranging bool) map[string]interface{} {
	return map[string]interface{}{
		"id":         float64(7),
		"device_id":  "phone-1",
		"identifier": "123456",
		"uuid":       "7b44b47b-52a1-5381-90c2-f09b6838c5d4",
		"major":      float64(1),
		"minor":      nil,
		"monitoring": monitoring,
		"ranging":    ranging,
	}
}

func TestRegionListenerPublishesCreated(t *testing.T) {
	publisher := &mqtest.Publisher{}
	topics := mq.NewTopicManager("beacons")
	listener := NewRegionTableListener(zerolog.Nop(), publisher, topics, &fakeForgetter{})

	stamp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := listener.HandleChange(context.Background(), &interfaces.TableChangeEvent{
		Operation: interfaces.InsertOperation,
		Table:     "regions",
		NewData:   regionRowData(true, false),
		Timestamp: stamp,
	})
	require.NoError(t, err)

	published := publisher.OnTopic("beacons/events/regions/created")
	require.Len(t, published, 1)
	assert.False(t, published[0].Retained)

	var event RegionEvent
	require.NoError(t, mqtest.Decode(published[0], &event))
	assert.Equal(t, "region_created", event.Event)
	assert.Equal(t, "phone-1", event.DeviceID)
	require.NotNil(t, event.Region)
	assert.Equal(t, "123456", event.Region.Identifier)
	require.NotNil(t, event.Region.Major)
	assert.Equal(t, 1, *event.Region.Major)
	assert.Nil(t, event.Region.Minor)
	assert.Nil(t, event.Previous)
	assert.True(t, stamp.Equal(event.Timestamp))
}

func TestRegionListenerPublishesUpdated(t *testing.T) {
	publisher := &mqtest.Publisher{}
	listener := NewRegionTableListener(zerolog.Nop(), publisher, mq.NewTopicManager("beacons"), nil)

	err := listener.HandleChange(context.Background(), &interfaces.TableChangeEvent{
		Operation: interfaces.UpdateOperation,
		Table:     "regions",
		OldData:   regionRowData(true, false),
		NewData:   regionRowData(true, true),
	})
	require.NoError(t, err)

	published := publisher.OnTopic("beacons/events/regions/updated")
	require.Len(t, published, 1)

	var event RegionEvent
	require.NoError(t, mqtest.Decode(published[0], &event))
	assert.Equal(t, "region_updated", event.Event)
	assert.NotNil(t, event.Region)
	assert.NotNil(t, event.Previous)
}

func TestRegionListenerDeleteForgetsRegion(t *testing.T) {
	publisher := &mqtest.Publisher{}
	forgetter := &fakeForgetter{err: errors.New("bridge offline")}
	listener := NewRegionTableListener(zerolog.Nop(), publisher, mq.NewTopicManager("beacons"), forgetter)

	err := listener.HandleChange(context.Background(), &interfaces.TableChangeEvent{
		Operation: interfaces.DeleteOperation,
		Table:     "regions",
		OldData:   regionRowData(false, true),
	})
	require.NoError(t, err, "a failed stop is logged, the event is still published")

	require.Len(t, forgetter.forgotten, 1)
	forgotten := forgetter.forgotten[0]
	assert.Equal(t, "phone-1", forgotten.DeviceID)
	assert.Equal(t, "123456", forgotten.Identifier)
	assert.True(t, forgotten.Ranging)

	published := publisher.OnTopic("beacons/events/regions/deleted")
	require.Len(t, published, 1)

	var event RegionEvent
	require.NoError(t, mqtest.Decode(published[0], &event))
	assert.Equal(t, "phone-1", event.DeviceID)
	assert.Nil(t, event.Region)
	assert.NotNil(t, event.Previous)
}

func TestRegionListenerPublishFailure(t *testing.T) {
	publisher := &mqtest.Publisher{Err: errors.New("not connected")}
	listener := NewRegionTableListener(zerolog.Nop(), publisher, mq.NewTopicManager("beacons"), nil)

	err := listener.HandleChange(context.Background(), &interfaces.TableChangeEvent{
		Operation: interfaces.InsertOperation,
		Table:     "regions",
		NewData:   regionRowData(true, false),
	})
	assert.ErrorContains(t, err, "not connected")
}

func TestRegionListenerUnknownOperation(t *testing.T) {
	listener := NewRegionTableListener(zerolog.Nop(), &mqtest.Publisher{}, mq.NewTopicManager("beacons"), nil)

	err := listener.HandleChange(context.Background(), &interfaces.TableChangeEvent{
		Operation: "TRUNCATE",
		Table:     "regions",
	})
	assert.Error(t, err)
}
