package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
)

// -------- test fakes --------

type fakeUsers struct {
	byID map[primitive.ObjectID]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: map[primitive.ObjectID]*model.User{}}
	for _, u := range users {
		if u.ID.IsZero() {
			u.ID = primitive.NewObjectID()
		}
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return *u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (model.User, error) {
	if u, ok := f.byID[id]; ok {
		return *u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeUsers) UpdateByID(_ context.Context, id primitive.ObjectID, set bson.M) error {
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	applyUserSet(u, set)
	return nil
}

func (f *fakeUsers) UpdateWithRevision(_ context.Context, id primitive.ObjectID, revision int64, set bson.M) error {
	u, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if u.Revision != revision {
		return repository.ErrStaleDocument
	}
	applyUserSet(u, set)
	u.Revision++
	return nil
}

func (f *fakeUsers) UnsetCaregiverRefs(_ context.Context, caregiverEmail string) (int64, error) {
	var n int64
	for _, u := range f.byID {
		if u.CaregiverEmail != nil && *u.CaregiverEmail == caregiverEmail {
			u.CaregiverEmail = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) UnsetCaregiverRefByPatient(_ context.Context, patientEmail string) error {
	for _, u := range f.byID {
		if u.Email == patientEmail {
			u.CaregiverEmail = nil
		}
	}
	return nil
}

func applyUserSet(u *model.User, set bson.M) {
	for k, v := range set {
		switch k {
		case "reminders":
			u.Reminders = v.([]model.ListItem)
		case "memories":
			u.Memories = v.([]model.ListItem)
		case "emergencyContacts":
			u.EmergencyContacts = v.([]model.ListItem)
		case "homeLocation":
			if v == nil {
				u.HomeLocation = nil
			} else {
				u.HomeLocation = v.(map[string]interface{})
			}
		case "caregiverEmail":
			switch e := v.(type) {
			case nil:
				u.CaregiverEmail = nil
			case string:
				s := e
				u.CaregiverEmail = &s
			case *string:
				u.CaregiverEmail = e
			}
		}
	}
}

type fakeCaregivers struct {
	byID map[primitive.ObjectID]*model.Caregiver
	// staleLeft injects this many lost CAS races before updates succeed.
	staleLeft int
}

func newFakeCaregivers(cgs ...*model.Caregiver) *fakeCaregivers {
	f := &fakeCaregivers{byID: map[primitive.ObjectID]*model.Caregiver{}}
	for _, cg := range cgs {
		if cg.ID.IsZero() {
			cg.ID = primitive.NewObjectID()
		}
		if cg.PatientData == nil {
			cg.PatientData = map[string]model.PatientSnapshot{}
		}
		f.byID[cg.ID] = cg
	}
	return f
}

func (f *fakeCaregivers) GetByEmail(_ context.Context, email string) (model.Caregiver, error) {
	for _, cg := range f.byID {
		if cg.Email == email {
			return cloneCaregiver(cg), nil
		}
	}
	return model.Caregiver{}, repository.ErrNotFound
}

func (f *fakeCaregivers) GetByID(_ context.Context, id primitive.ObjectID) (model.Caregiver, error) {
	if cg, ok := f.byID[id]; ok {
		return cloneCaregiver(cg), nil
	}
	return model.Caregiver{}, repository.ErrNotFound
}

func (f *fakeCaregivers) UpdateWithRevision(_ context.Context, id primitive.ObjectID, revision int64, set bson.M) error {
	cg, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if f.staleLeft > 0 {
		f.staleLeft--
		cg.Revision++ // a competing writer got there first
		return repository.ErrStaleDocument
	}
	if cg.Revision != revision {
		return repository.ErrStaleDocument
	}
	applyCaregiverSet(cg, set)
	cg.Revision++
	return nil
}

func (f *fakeCaregivers) FindReferencing(_ context.Context, patientEmail string) ([]model.Caregiver, error) {
	var out []model.Caregiver
	for _, cg := range f.byID {
		if cg.References(patientEmail) {
			out = append(out, cloneCaregiver(cg))
		}
	}
	return out, nil
}

func applyCaregiverSet(cg *model.Caregiver, set bson.M) {
	for k, v := range set {
		switch k {
		case "patientEmail":
			switch e := v.(type) {
			case nil:
				cg.PatientEmail = nil
			case string:
				s := e
				cg.PatientEmail = &s
			case *string:
				cg.PatientEmail = e
			}
		case "connectedPatients":
			cg.ConnectedPatients = v.([]string)
		case "patientData":
			cg.PatientData = v.(map[string]model.PatientSnapshot)
		}
	}
}

func cloneCaregiver(cg *model.Caregiver) model.Caregiver {
	out := *cg
	out.ConnectedPatients = append([]string(nil), cg.ConnectedPatients...)
	out.PatientData = make(map[string]model.PatientSnapshot, len(cg.PatientData))
	for k, v := range cg.PatientData {
		out.PatientData[k] = v
	}
	return out
}

func strptr(s string) *string { return &s }

// -------- tests --------

func TestConnectMissingPatientFailsWithoutMutation(t *testing.T) {
	cg := &model.Caregiver{Email: "cg@example.com"}
	users := newFakeUsers()
	caregivers := newFakeCaregivers(cg)
	m := NewConnectionManager(users, caregivers)

	_, err := m.Connect(context.Background(), cg.ID, "ghost@gmail.com")
	require.ErrorIs(t, err, repository.ErrNotFound)

	stored := caregivers.byID[cg.ID]
	assert.Nil(t, stored.PatientEmail)
	assert.Empty(t, stored.ConnectedPatients)
	assert.Empty(t, stored.PatientData)
}

func TestConnectFirstPatientBecomesPrimary(t *testing.T) {
	patient := &model.User{Email: "pat@gmail.com"}
	cg := &model.Caregiver{Email: "cg@example.com"}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	m := NewConnectionManager(users, caregivers)

	got, err := m.Connect(context.Background(), cg.ID, "Pat@Gmail.com")
	require.NoError(t, err)

	require.NotNil(t, got.PatientEmail)
	assert.Equal(t, "pat@gmail.com", *got.PatientEmail)
	assert.Equal(t, []string{"pat@gmail.com"}, got.ConnectedPatients)
	assert.Contains(t, got.PatientData, "pat@gmail.com")

	// Inverse reference lands on the patient.
	require.NotNil(t, users.byID[patient.ID].CaregiverEmail)
	assert.Equal(t, "cg@example.com", *users.byID[patient.ID].CaregiverEmail)
}

func TestConnectSecondPatientKeepsPrimary(t *testing.T) {
	first := &model.User{Email: "first@gmail.com"}
	second := &model.User{Email: "second@gmail.com"}
	cg := &model.Caregiver{Email: "cg@example.com"}
	users := newFakeUsers(first, second)
	caregivers := newFakeCaregivers(cg)
	m := NewConnectionManager(users, caregivers)

	_, err := m.Connect(context.Background(), cg.ID, "first@gmail.com")
	require.NoError(t, err)
	got, err := m.Connect(context.Background(), cg.ID, "second@gmail.com")
	require.NoError(t, err)

	require.NotNil(t, got.PatientEmail)
	assert.Equal(t, "first@gmail.com", *got.PatientEmail)
	assert.Equal(t, []string{"first@gmail.com", "second@gmail.com"}, got.ConnectedPatients)
	assert.Contains(t, got.PatientData, "second@gmail.com")
}

func TestConnectRetriesAfterLostRace(t *testing.T) {
	patient := &model.User{Email: "pat@gmail.com"}
	cg := &model.Caregiver{Email: "cg@example.com"}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	caregivers.staleLeft = 1
	m := NewConnectionManager(users, caregivers)

	got, err := m.Connect(context.Background(), cg.ID, "pat@gmail.com")
	require.NoError(t, err)
	require.NotNil(t, got.PatientEmail)
	assert.Equal(t, "pat@gmail.com", *got.PatientEmail)
}

func TestDisconnectRequiresCurrentPrimary(t *testing.T) {
	cg := &model.Caregiver{
		Email:             "cg@example.com",
		PatientEmail:      strptr("pat@gmail.com"),
		ConnectedPatients: []string{"pat@gmail.com"},
	}
	users := newFakeUsers(&model.User{Email: "pat@gmail.com"})
	caregivers := newFakeCaregivers(cg)
	m := NewConnectionManager(users, caregivers)

	err := m.Disconnect(context.Background(), cg.ID, "other@gmail.com")
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestDisconnectClearsBothSides(t *testing.T) {
	patient := &model.User{Email: "pat@gmail.com", CaregiverEmail: strptr("cg@example.com")}
	cg := &model.Caregiver{
		Email:             "cg@example.com",
		PatientEmail:      strptr("pat@gmail.com"),
		ConnectedPatients: []string{"pat@gmail.com"},
		PatientData:       map[string]model.PatientSnapshot{"pat@gmail.com": model.NewPatientSnapshot()},
	}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	m := NewConnectionManager(users, caregivers)

	require.NoError(t, m.Disconnect(context.Background(), cg.ID, "pat@gmail.com"))

	stored := caregivers.byID[cg.ID]
	assert.Nil(t, stored.PatientEmail)
	assert.Empty(t, stored.ConnectedPatients)
	assert.NotContains(t, stored.PatientData, "pat@gmail.com")
	assert.Nil(t, users.byID[patient.ID].CaregiverEmail)
}

func TestEnsurePrimaryValidHealsDanglingReference(t *testing.T) {
	cg := &model.Caregiver{Email: "cg@example.com", PatientEmail: strptr("gone@gmail.com")}
	users := newFakeUsers() // patient deleted
	caregivers := newFakeCaregivers(cg)
	m := NewConnectionManager(users, caregivers)

	healed, valid, err := m.EnsurePrimaryValid(context.Background(), cloneCaregiver(cg))
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Nil(t, healed.PatientEmail)
	// The repair is persisted, not just returned.
	assert.Nil(t, caregivers.byID[cg.ID].PatientEmail)
}

func TestEnsurePrimaryValidKeepsLiveReference(t *testing.T) {
	patient := &model.User{Email: "pat@gmail.com"}
	cg := &model.Caregiver{Email: "cg@example.com", PatientEmail: strptr("pat@gmail.com")}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	m := NewConnectionManager(users, caregivers)

	got, valid, err := m.EnsurePrimaryValid(context.Background(), cloneCaregiver(cg))
	require.NoError(t, err)
	assert.True(t, valid)
	require.NotNil(t, got.PatientEmail)
	assert.Equal(t, "pat@gmail.com", *got.PatientEmail)
}

func TestCascadePatientDeleteClearsEveryCaregiver(t *testing.T) {
	primaryHolder := &model.Caregiver{
		Email:             "a@example.com",
		PatientEmail:      strptr("pat@gmail.com"),
		ConnectedPatients: []string{"pat@gmail.com", "other@gmail.com"},
		PatientData:       map[string]model.PatientSnapshot{"pat@gmail.com": model.NewPatientSnapshot()},
	}
	setHolder := &model.Caregiver{
		Email:             "b@example.com",
		PatientEmail:      strptr("other@gmail.com"),
		ConnectedPatients: []string{"other@gmail.com", "pat@gmail.com"},
	}
	users := newFakeUsers(&model.User{Email: "other@gmail.com"})
	caregivers := newFakeCaregivers(primaryHolder, setHolder)
	m := NewConnectionManager(users, caregivers)

	require.NoError(t, m.CascadePatientDelete(context.Background(), "pat@gmail.com"))

	a := caregivers.byID[primaryHolder.ID]
	assert.Nil(t, a.PatientEmail)
	assert.Equal(t, []string{"other@gmail.com"}, a.ConnectedPatients)
	assert.NotContains(t, a.PatientData, "pat@gmail.com")

	b := caregivers.byID[setHolder.ID]
	require.NotNil(t, b.PatientEmail)
	assert.Equal(t, "other@gmail.com", *b.PatientEmail)
	assert.Equal(t, []string{"other@gmail.com"}, b.ConnectedPatients)
}

func TestCascadePatientDeleteClearsSyncOnlySlots(t *testing.T) {
	// A caregiver can sync to a patient without ever connecting; the
	// mirror slot that creates is still a reference the cascade owns.
	patient := &model.User{Email: "pat@gmail.com"}
	cg := &model.Caregiver{Email: "cg@example.com"}
	users := newFakeUsers(patient)
	caregivers := newFakeCaregivers(cg)
	s := NewSyncService(users, caregivers)
	m := NewConnectionManager(users, caregivers)

	_, err := s.SyncList(context.Background(), cg.ID, "pat@gmail.com", KindReminders,
		[]model.ListItem{item("1", "a")})
	require.NoError(t, err)
	require.Contains(t, caregivers.byID[cg.ID].PatientData, "pat@gmail.com")

	delete(users.byID, patient.ID)
	require.NoError(t, m.CascadePatientDelete(context.Background(), "pat@gmail.com"))

	assert.NotContains(t, caregivers.byID[cg.ID].PatientData, "pat@gmail.com")
}

func TestCascadeCaregiverDeleteClearsBackrefs(t *testing.T) {
	linked := &model.User{Email: "pat@gmail.com", CaregiverEmail: strptr("cg@example.com")}
	other := &model.User{Email: "other@gmail.com", CaregiverEmail: strptr("someone@example.com")}
	users := newFakeUsers(linked, other)
	caregivers := newFakeCaregivers()
	m := NewConnectionManager(users, caregivers)

	deleted := model.Caregiver{Email: "cg@example.com", PatientEmail: strptr("pat@gmail.com")}
	require.NoError(t, m.CascadeCaregiverDelete(context.Background(), deleted))

	assert.Nil(t, users.byID[linked.ID].CaregiverEmail)
	require.NotNil(t, users.byID[other.ID].CaregiverEmail)
	assert.Equal(t, "someone@example.com", *users.byID[other.ID].CaregiverEmail)
}
