// Package reconciler merges newly observed beacons into the per-category lists
// a scanning session displays.
//
// Reconcile is pure: it never mutates its input and never fails. Callers that
// receive events concurrently must apply results one at a time against a single
// current value; the package provides no serialization of its own.
package reconciler

import "beacons-sync/internal/models"

// Reconcile returns a copy of current in which every observation of batch has
// been upserted into the target list by (uuid, major, minor) identity.
//
// Observations without a uuid are skipped. A malformed batch or an unknown
// target yields an unchanged copy.
func Reconcile(current models.BeaconLists, batch models.ObservationBatch, target models.ListName) models.BeaconLists {
	next := current.Clone()
	if !target.IsValid() {
		return next
	}

	list := next[target]
	for _, observation := range batch.Observations() {
		if !observation.HasIdentity() {
			continue
		}
		list = upsert(list, observation)
	}
	if list == nil {
		list = []models.BeaconObservation{}
	}
	next[target] = list

	return next
}

func ReconcileOne(current models.BeaconLists, observation models.BeaconObservation, target models.ListName) models.BeaconLists {
	return Reconcile(current, models.Single(observation), target)
}

// upsert drops every entry sharing the observation's identity and appends the
// observation as received.
func upsert(list []models.BeaconObservation, observation models.BeaconObservation) []models.BeaconObservation {
	identity := observation.Identity()

	kept := list[:0]
	for _, existing := range list {
		if existing.Identity() != identity {
			kept = append(kept, existing)
		}
	}
	return append(kept, observation.Clone())
}
