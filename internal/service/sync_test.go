package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
)

func item(id, value string) model.ListItem {
	return model.ListItem{"id": id, "value": value}
}

func TestMergeListIncomingWins(t *testing.T) {
	existing := []model.ListItem{item("1", "a")}
	incoming := []model.ListItem{item("1", "b"), item("2", "c")}

	merged := MergeList(existing, incoming)

	require.Len(t, merged, 2)
	assert.Equal(t, "b", merged[0]["value"])
	assert.Equal(t, "c", merged[1]["value"])
}

func TestMergeListSurvivorsKeepOrderAheadOfBatch(t *testing.T) {
	existing := []model.ListItem{item("1", "a"), item("2", "b"), item("3", "c")}
	incoming := []model.ListItem{item("2", "b2"), item("4", "d")}

	merged := MergeList(existing, incoming)

	require.Len(t, merged, 4)
	// Untouched items first in their original order, then the batch.
	assert.Equal(t, "1", merged[0].ID())
	assert.Equal(t, "3", merged[1].ID())
	assert.Equal(t, "2", merged[2].ID())
	assert.Equal(t, "4", merged[3].ID())
}

func TestMergeListEmptySides(t *testing.T) {
	batch := []model.ListItem{item("1", "a")}

	assert.Equal(t, batch, MergeList(nil, batch))
	assert.Equal(t, batch, MergeList(batch, nil))
}

func TestMergeListNumericAndStringIDsCollide(t *testing.T) {
	existing := []model.ListItem{{"id": float64(7), "value": "old"}}
	incoming := []model.ListItem{{"id": "7", "value": "new"}}

	merged := MergeList(existing, incoming)

	require.Len(t, merged, 1)
	assert.Equal(t, "new", merged[0]["value"])
}

func TestStampItemsAttachesProvenanceWithoutMutating(t *testing.T) {
	original := []model.ListItem{item("1", "a")}

	stamped := StampItems(original, "pat@gmail.com", "cg@example.com")

	require.Len(t, stamped, 1)
	assert.Equal(t, "pat@gmail.com", stamped[0]["forPatient"])
	assert.Equal(t, "cg@example.com", stamped[0]["createdBy"])
	_, leaked := original[0]["forPatient"]
	assert.False(t, leaked, "input items must not be mutated")
}

func TestSyncListMergesPatientAndMirrorsCache(t *testing.T) {
	patient := &model.User{
		Email:     "pat@gmail.com",
		Reminders: []model.ListItem{item("1", "old"), item("2", "keep")},
	}
	cg := &model.Caregiver{Email: "cg@example.com"}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	s := NewSyncService(users, caregivers)

	n, err := s.SyncList(context.Background(), cg.ID, "Pat@Gmail.com", KindReminders,
		[]model.ListItem{item("1", "new"), item("3", "added")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := users.byID[patient.ID].Reminders
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].ID())
	assert.Equal(t, "new", got[1]["value"])
	assert.Equal(t, "added", got[2]["value"])

	// The cache holds only the stamped batch, not the merged result.
	snap, ok := caregivers.byID[cg.ID].PatientData["pat@gmail.com"]
	require.True(t, ok)
	require.Len(t, snap.Reminders, 2)
	assert.Equal(t, "cg@example.com", snap.Reminders[0]["createdBy"])
	assert.Equal(t, "pat@gmail.com", snap.Reminders[0]["forPatient"])
}

func TestSyncListMissingPatient(t *testing.T) {
	cg := &model.Caregiver{Email: "cg@example.com"}
	caregivers := newFakeCaregivers(cg)
	s := NewSyncService(newFakeUsers(), caregivers)

	_, err := s.SyncList(context.Background(), cg.ID, "ghost@gmail.com", KindReminders,
		[]model.ListItem{item("1", "a")})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSyncListMissingCaregiver(t *testing.T) {
	users := newFakeUsers(&model.User{Email: "pat@gmail.com"})
	s := NewSyncService(users, newFakeCaregivers())

	_, err := s.SyncList(context.Background(), primitive.NewObjectID(), "pat@gmail.com", KindMemories, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSyncHomeLocationReplacesAndMirrors(t *testing.T) {
	patient := &model.User{
		Email:        "pat@gmail.com",
		HomeLocation: map[string]interface{}{"latitude": 1.0},
	}
	cg := &model.Caregiver{Email: "cg@example.com"}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	s := NewSyncService(users, caregivers)

	loc := map[string]interface{}{"latitude": 40.7, "longitude": -74.0, "address": "home"}
	require.NoError(t, s.SyncHomeLocation(context.Background(), cg.ID, "pat@gmail.com", loc))

	assert.Equal(t, loc, users.byID[patient.ID].HomeLocation)
	snap := caregivers.byID[cg.ID].PatientData["pat@gmail.com"]
	assert.Equal(t, loc, snap.HomeLocation)
}

func TestGetPatientDataReadsAuthoritativeRecord(t *testing.T) {
	patient := &model.User{
		Email:     "pat@gmail.com",
		Reminders: []model.ListItem{item("1", "a")},
	}
	// Stale cache entry proves reads bypass it.
	cg := &model.Caregiver{
		Email: "cg@example.com",
		PatientData: map[string]model.PatientSnapshot{
			"pat@gmail.com": {Reminders: []model.ListItem{item("9", "stale")}},
		},
	}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	s := NewSyncService(users, caregivers)

	got, err := s.GetPatientData(context.Background(), cg.ID, "PAT@gmail.com")
	require.NoError(t, err)
	require.Len(t, got.Reminders, 1)
	assert.Equal(t, "1", got.Reminders[0].ID())
}
