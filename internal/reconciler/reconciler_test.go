package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacons-sync/internal/models"
)

func intPtr(v int) *int {
	return &v
}

func beacon(uuid string, major, minor int) models.BeaconObservation {
	return models.BeaconObservation{
		UUID:  uuid,
		Major: models.CodeOf(major),
		Minor: models.CodeOf(minor),
	}
}

func TestReconcile_ReobservationKeepsOneEntry(t *testing.T) {
	obs := beacon("7b44b47b-52a1-5381-90c2-f09b6838c5d4", 1, 2)

	lists := ReconcileOne(models.NewBeaconLists(), obs, models.RangingList)
	lists = ReconcileOne(lists, obs, models.RangingList)

	require.Len(t, lists[models.RangingList], 1)
	assert.Equal(t, obs, lists[models.RangingList][0])
}

func TestReconcile_IdentityIsCaseInsensitive(t *testing.T) {
	first := beacon("abc-123", 4, 5)
	first.Identifier = "first"
	second := beacon("ABC-123", 4, 5)
	second.Identifier = "second"

	lists := ReconcileOne(models.NewBeaconLists(), first, models.MonitorEnterList)
	lists = ReconcileOne(lists, second, models.MonitorEnterList)

	require.Len(t, lists[models.MonitorEnterList], 1)
	assert.Equal(t, "ABC-123", lists[models.MonitorEnterList][0].UUID)
	assert.Equal(t, "second", lists[models.MonitorEnterList][0].Identifier)
}

func TestReconcile_DifferentMajorMinorAreDifferentBeacons(t *testing.T) {
	lists := Reconcile(models.NewBeaconLists(), models.Many([]models.BeaconObservation{
		beacon("AAA", 1, 1),
		beacon("AAA", 1, 2),
		beacon("AAA", 2, 1),
	}), models.RangingList)

	assert.Len(t, lists[models.RangingList], 3)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	original := models.NewBeaconLists()
	existing := beacon("AAA", 1, 1)
	existing.RSSI = intPtr(-70)
	original[models.RangingList] = []models.BeaconObservation{existing, beacon("BBB", 1, 1)}
	before := original.Clone()

	updated := beacon("AAA", 1, 1)
	updated.RSSI = intPtr(-40)
	result := ReconcileOne(original, updated, models.RangingList)

	assert.Equal(t, before, original)
	require.Len(t, result[models.RangingList], 2)
	assert.Equal(t, -40, *result[models.RangingList][1].RSSI)

	result[models.RangingList][0].UUID = "CHANGED"
	*result[models.RangingList][1].RSSI = 0
	assert.Equal(t, before, original)
}

func TestReconcile_UnknownListIsNoop(t *testing.T) {
	lists := ReconcileOne(models.NewBeaconLists(), beacon("AAA", 1, 1), models.RangingList)

	result := ReconcileOne(lists, beacon("BBB", 1, 1), models.ListName("bogusList"))

	assert.Equal(t, lists.Clone(), result)
	_, ok := result["bogusList"]
	assert.False(t, ok)
}

func TestReconcile_MalformedBatchIsNoop(t *testing.T) {
	lists := ReconcileOne(models.NewBeaconLists(), beacon("AAA", 1, 1), models.RangingList)

	result := Reconcile(lists, models.Malformed(), models.RangingList)
	assert.Equal(t, lists, result)

	var zero models.ObservationBatch
	result = Reconcile(lists, zero, models.RangingList)
	assert.Equal(t, lists, result)
}

func TestReconcile_SkipsObservationsWithoutUUID(t *testing.T) {
	batch := models.Many([]models.BeaconObservation{
		{UUID: "", Major: "1", Minor: "2"},
		{UUID: "X", Major: "1", Minor: "2"},
		{UUID: "   "},
	})

	lists := Reconcile(models.NewBeaconLists(), batch, models.RangingList)

	require.Len(t, lists[models.RangingList], 1)
	assert.Equal(t, "X", lists[models.RangingList][0].UUID)
}

func TestReconcile_RangingScenario(t *testing.T) {
	aaa := beacon("AAA", 1, 1)
	aaa.RSSI = intPtr(-80)
	bbb := beacon("BBB", 1, 1)
	bbb.RSSI = intPtr(-60)

	lists := Reconcile(models.NewBeaconLists(), models.Many([]models.BeaconObservation{aaa, bbb}), models.RangingList)
	require.Len(t, lists[models.RangingList], 2)

	refreshed := beacon("AAA", 1, 1)
	refreshed.RSSI = intPtr(-42)
	lists = Reconcile(lists, models.Many([]models.BeaconObservation{refreshed}), models.RangingList)

	require.Len(t, lists[models.RangingList], 2)
	assert.Equal(t, "BBB", lists[models.RangingList][0].UUID)
	assert.Equal(t, "AAA", lists[models.RangingList][1].UUID)
	assert.Equal(t, -42, *lists[models.RangingList][1].RSSI)
}

func TestReconcile_ZeroAndAbsentMajorCollide(t *testing.T) {
	explicit := models.BeaconObservation{UUID: "AAA", Major: "0", Minor: "3", Identifier: "explicit"}
	absent := models.BeaconObservation{UUID: "AAA", Minor: "3", Identifier: "absent"}
	garbage := models.BeaconObservation{UUID: "AAA", Major: "n/a", Minor: "3", Identifier: "garbage"}

	lists := ReconcileOne(models.NewBeaconLists(), explicit, models.MonitorExitList)
	lists = ReconcileOne(lists, absent, models.MonitorExitList)
	lists = ReconcileOne(lists, garbage, models.MonitorExitList)

	require.Len(t, lists[models.MonitorExitList], 1)
	assert.Equal(t, "garbage", lists[models.MonitorExitList][0].Identifier)
	assert.Equal(t, models.Code("n/a"), lists[models.MonitorExitList][0].Major)
}

func TestReconcile_OnlyTargetListChanges(t *testing.T) {
	lists := ReconcileOne(models.NewBeaconLists(), beacon("AAA", 1, 1), models.MonitorEnterList)

	assert.Len(t, lists[models.MonitorEnterList], 1)
	assert.Empty(t, lists[models.RangingList])
	assert.Empty(t, lists[models.MonitorExitList])
}

func TestReconcile_NilListsStartEmpty(t *testing.T) {
	lists := ReconcileOne(nil, beacon("AAA", 1, 1), models.RangingList)

	require.NotNil(t, lists)
	assert.Len(t, lists[models.RangingList], 1)
}
