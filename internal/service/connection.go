package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
)

// ErrNotConnected is returned when a disconnect names a patient that is
// not the caregiver's current primary connection.
var ErrNotConnected = errors.New("caregiver is not connected to this patient")

// casAttempts bounds the re-read/retry loop around revision-guarded
// updates. Contention on a single account record is human-driven, so a
// handful of attempts is plenty.
const casAttempts = 3

// ConnectionManager owns the bidirectional caregiver–patient link:
// Caregiver.patientEmail / connectedPatients / patientData membership on
// one side, User.caregiverEmail on the other. It is the only component
// allowed to mutate these fields.
type ConnectionManager struct {
	Users      UserStore
	Caregivers CaregiverStore
}

func NewConnectionManager(u UserStore, c CaregiverStore) *ConnectionManager {
	return &ConnectionManager{Users: u, Caregivers: c}
}

// mutateCaregiver runs a revision-guarded read-modify-write against one
// caregiver document. The mutate callback edits the in-memory document
// and returns the fields to persist; on a lost race the document is
// re-read and the callback re-applied.
func (m *ConnectionManager) mutateCaregiver(ctx context.Context, id primitive.ObjectID,
	mutate func(*model.Caregiver) bson.M) (model.Caregiver, error) {

	var lastErr error
	for i := 0; i < casAttempts; i++ {
		cg, err := m.Caregivers.GetByID(ctx, id)
		if err != nil {
			return model.Caregiver{}, err
		}
		set := mutate(&cg)
		if set == nil { // nothing to change
			return cg, nil
		}
		err = m.Caregivers.UpdateWithRevision(ctx, cg.ID, cg.Revision, set)
		if err == nil {
			return cg, nil
		}
		if !errors.Is(err, repository.ErrStaleDocument) {
			return model.Caregiver{}, err
		}
		lastErr = err
	}
	return model.Caregiver{}, lastErr
}

// Connect links a caregiver to an existing patient. The first connection
// becomes the primary (patientEmail); later ones only join the active
// set. The patient's inverse reference is set in either case.
func (m *ConnectionManager) Connect(ctx context.Context, caregiverID primitive.ObjectID, patientEmail string) (model.Caregiver, error) {
	patientEmail = strings.ToLower(strings.TrimSpace(patientEmail))

	patient, err := m.Users.GetByEmail(ctx, patientEmail)
	if err != nil {
		return model.Caregiver{}, err // ErrNotFound: account deleted or never existed
	}

	cg, err := m.mutateCaregiver(ctx, caregiverID, func(cg *model.Caregiver) bson.M {
		return applyConnect(cg, patientEmail)
	})
	if err != nil {
		return model.Caregiver{}, err
	}

	if err := m.Users.UpdateByID(ctx, patient.ID, bson.M{"caregiverEmail": cg.Email}); err != nil {
		return model.Caregiver{}, err
	}
	return cg, nil
}

// ConnectByPatient is the inverse entry point: a logged-in patient names
// the caregiver by email. Effects are identical to Connect.
func (m *ConnectionManager) ConnectByPatient(ctx context.Context, userID primitive.ObjectID, caregiverEmail string) error {
	caregiverEmail = strings.ToLower(strings.TrimSpace(caregiverEmail))

	user, err := m.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	cg, err := m.Caregivers.GetByEmail(ctx, caregiverEmail)
	if err != nil {
		return err
	}

	if _, err := m.mutateCaregiver(ctx, cg.ID, func(cg *model.Caregiver) bson.M {
		return applyConnect(cg, user.Email)
	}); err != nil {
		return err
	}
	return m.Users.UpdateByID(ctx, user.ID, bson.M{"caregiverEmail": caregiverEmail})
}

// applyConnect mutates the caregiver document for a new patient link and
// returns the fields to persist, or nil when the link already exists in
// full.
func applyConnect(cg *model.Caregiver, patientEmail string) bson.M {
	changed := false

	if cg.PatientEmail == nil || *cg.PatientEmail == "" {
		cg.PatientEmail = &patientEmail
		changed = true
	}
	if !containsString(cg.ConnectedPatients, patientEmail) {
		cg.ConnectedPatients = append(cg.ConnectedPatients, patientEmail)
		changed = true
	}
	if cg.PatientData == nil {
		cg.PatientData = map[string]model.PatientSnapshot{}
	}
	if _, ok := cg.PatientData[patientEmail]; !ok {
		cg.PatientData[patientEmail] = model.NewPatientSnapshot()
		changed = true
	}
	if !changed {
		return nil
	}
	return bson.M{
		"patientEmail":      cg.PatientEmail,
		"connectedPatients": cg.ConnectedPatients,
		"patientData":       cg.PatientData,
	}
}

// Disconnect tears down the caregiver's primary connection. The named
// patient must be the current primary. connectedPatients is an active-set
// mirror, so the email leaves the set and its patientData slot is dropped
// along with the primary reference.
func (m *ConnectionManager) Disconnect(ctx context.Context, caregiverID primitive.ObjectID, patientEmail string) error {
	patientEmail = strings.ToLower(strings.TrimSpace(patientEmail))

	var lastErr error
	for i := 0; i < casAttempts; i++ {
		cg, err := m.Caregivers.GetByID(ctx, caregiverID)
		if err != nil {
			return err
		}
		if cg.PatientEmail == nil || *cg.PatientEmail != patientEmail {
			return ErrNotConnected
		}
		cg.PatientEmail = nil
		cg.ConnectedPatients = removeString(cg.ConnectedPatients, patientEmail)
		delete(cg.PatientData, patientEmail)

		err = m.Caregivers.UpdateWithRevision(ctx, cg.ID, cg.Revision, bson.M{
			"patientEmail":      nil,
			"connectedPatients": cg.ConnectedPatients,
			"patientData":       cg.PatientData,
		})
		if err == nil {
			m.clearUserBackref(ctx, patientEmail, cg.Email)
			return nil
		}
		if !errors.Is(err, repository.ErrStaleDocument) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// clearUserBackref removes the inverse reference from the patient when it
// still points at this caregiver. Best-effort: a missing patient is fine.
func (m *ConnectionManager) clearUserBackref(ctx context.Context, patientEmail, caregiverEmail string) {
	user, err := m.Users.GetByEmail(ctx, patientEmail)
	if err != nil {
		return
	}
	if user.CaregiverEmail == nil || *user.CaregiverEmail != caregiverEmail {
		return
	}
	if err := m.Users.UnsetCaregiverRefByPatient(ctx, patientEmail); err != nil {
		log.Printf("connection: failed to clear caregiver backref on %s: %v", patientEmail, err)
	}
}

// EnsurePrimaryValid re-validates a caregiver's primary patient
// reference, clearing and persisting it when the patient no longer
// exists. This is the lazy repair every read of patientEmail goes
// through; it returns the (possibly healed) caregiver and whether a
// valid primary remains.
func (m *ConnectionManager) EnsurePrimaryValid(ctx context.Context, cg model.Caregiver) (model.Caregiver, bool, error) {
	if cg.PatientEmail == nil || *cg.PatientEmail == "" {
		return cg, false, nil
	}
	_, err := m.Users.GetByEmail(ctx, *cg.PatientEmail)
	if err == nil {
		return cg, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return cg, false, err
	}

	log.Printf("connection: patient %s not found, clearing primary on caregiver %s", *cg.PatientEmail, cg.Email)
	healed, err := m.mutateCaregiver(ctx, cg.ID, func(cg *model.Caregiver) bson.M {
		if cg.PatientEmail == nil {
			return nil
		}
		cg.PatientEmail = nil
		return bson.M{"patientEmail": nil}
	})
	if err != nil {
		return cg, false, err
	}
	return healed, false, nil
}

// CascadePatientDelete is invoked after a user account is deleted. Every
// caregiver referencing the email loses its primary reference, its
// active-set entry, and its patientData slot. Failures on one caregiver
// do not stop the sweep.
func (m *ConnectionManager) CascadePatientDelete(ctx context.Context, patientEmail string) error {
	patientEmail = strings.ToLower(strings.TrimSpace(patientEmail))

	caregivers, err := m.Caregivers.FindReferencing(ctx, patientEmail)
	if err != nil {
		return err
	}
	log.Printf("connection: clearing %d caregiver reference(s) to deleted patient %s", len(caregivers), patientEmail)

	var firstErr error
	for _, cg := range caregivers {
		_, err := m.mutateCaregiver(ctx, cg.ID, func(cg *model.Caregiver) bson.M {
			if cg.PatientEmail != nil && *cg.PatientEmail == patientEmail {
				cg.PatientEmail = nil
			}
			cg.ConnectedPatients = removeString(cg.ConnectedPatients, patientEmail)
			delete(cg.PatientData, patientEmail)
			return bson.M{
				"patientEmail":      cg.PatientEmail,
				"connectedPatients": cg.ConnectedPatients,
				"patientData":       cg.PatientData,
			}
		})
		if err != nil {
			log.Printf("connection: cascade failed for caregiver %s: %v", cg.Email, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// CascadeCaregiverDelete is invoked after a caregiver account is deleted:
// every user whose caregiverEmail references it has the back-reference
// (and side fields) unset.
func (m *ConnectionManager) CascadeCaregiverDelete(ctx context.Context, deleted model.Caregiver) error {
	n, err := m.Users.UnsetCaregiverRefs(ctx, deleted.Email)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("connection: removed caregiver %s from %d patient(s)", deleted.Email, n)
	}
	// The directly-connected primary may predate the backref field; clear
	// it explicitly as well.
	if deleted.PatientEmail != nil && *deleted.PatientEmail != "" {
		if err := m.Users.UnsetCaregiverRefByPatient(ctx, *deleted.PatientEmail); err != nil {
			return err
		}
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
