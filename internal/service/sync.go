package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/repository"
)

// ListKind names the three list-valued sync domains. Home location is
// not a list; it replaces wholesale.
type ListKind string

const (
	KindReminders ListKind = "reminders"
	KindMemories  ListKind = "memories"
	KindContacts  ListKind = "emergencyContacts"
)

// SyncService merges caregiver-authored data into a patient's
// authoritative record and mirrors the pushed copy into the caregiver's
// per-patient cache. The two writes are sequential and not transactional;
// a crash between them leaves the cache stale, which is accepted because
// reads never trust the cache.
type SyncService struct {
	Users      UserStore
	Caregivers CaregiverStore
}

func NewSyncService(u UserStore, c CaregiverStore) *SyncService {
	return &SyncService{Users: u, Caregivers: c}
}

// StampItems copies the incoming items and attaches the provenance pair
// to each: forPatient (the normalized patient email the item targets)
// and createdBy (the caregiver email that authored it).
func StampItems(items []model.ListItem, patientEmail, caregiverEmail string) []model.ListItem {
	out := make([]model.ListItem, 0, len(items))
	for _, it := range items {
		stamped := make(model.ListItem, len(it)+2)
		for k, v := range it {
			stamped[k] = v
		}
		stamped["forPatient"] = patientEmail
		stamped["createdBy"] = caregiverEmail
		out = append(out, stamped)
	}
	return out
}

// MergeList merges an incoming batch into an existing list by item id:
// incoming items win, survivors keep their relative order ahead of the
// incoming batch. Re-syncing an existing id therefore moves the item to
// the end; this is deliberate last-writer-wins, not a positional merge.
func MergeList(existing, incoming []model.ListItem) []model.ListItem {
	incomingIDs := make(map[string]struct{}, len(incoming))
	for _, it := range incoming {
		incomingIDs[it.ID()] = struct{}{}
	}
	merged := make([]model.ListItem, 0, len(existing)+len(incoming))
	for _, it := range existing {
		if _, replaced := incomingIDs[it.ID()]; !replaced {
			merged = append(merged, it)
		}
	}
	return append(merged, incoming...)
}

// SyncList merges a caregiver-authored batch into the patient's list of
// the given kind and mirrors the stamped batch into the caregiver's
// patientData cache. Returns the number of items pushed.
func (s *SyncService) SyncList(ctx context.Context, caregiverID primitive.ObjectID, patientEmail string, kind ListKind, items []model.ListItem) (int, error) {
	cg, err := s.Caregivers.GetByID(ctx, caregiverID)
	if err != nil {
		return 0, err
	}
	patientEmail = normalizeEmail(patientEmail)
	patient, err := s.Users.GetByEmail(ctx, patientEmail)
	if err != nil {
		return 0, err
	}

	stamped := StampItems(items, patientEmail, cg.Email)

	// Authoritative write: merge into the patient's own list under a
	// revision guard so concurrent merges do not drop each other.
	var lastErr error
	for i := 0; i < casAttempts; i++ {
		merged := MergeList(listOf(&patient, kind), stamped)
		err = s.Users.UpdateWithRevision(ctx, patient.ID, patient.Revision, bson.M{string(kind): merged})
		if err == nil {
			lastErr = nil
			break
		}
		if !errors.Is(err, repository.ErrStaleDocument) {
			return 0, err
		}
		lastErr = err
		if patient, err = s.Users.GetByEmail(ctx, patientEmail); err != nil {
			return 0, err
		}
	}
	if lastErr != nil {
		return 0, lastErr
	}

	// Cache write: the caregiver's snapshot holds only what this
	// caregiver pushed, replaced wholesale per sync.
	err = s.mirrorSnapshot(ctx, cg.ID, patientEmail, func(snap *model.PatientSnapshot) {
		switch kind {
		case KindReminders:
			snap.Reminders = stamped
		case KindMemories:
			snap.Memories = stamped
		case KindContacts:
			snap.EmergencyContacts = stamped
		}
	})
	if err != nil {
		return 0, err
	}
	return len(stamped), nil
}

// SyncHomeLocation replaces the patient's home location and mirrors it
// into the caregiver's cache. No merge: a single nullable object.
func (s *SyncService) SyncHomeLocation(ctx context.Context, caregiverID primitive.ObjectID, patientEmail string, loc map[string]interface{}) error {
	cg, err := s.Caregivers.GetByID(ctx, caregiverID)
	if err != nil {
		return err
	}
	patientEmail = normalizeEmail(patientEmail)
	patient, err := s.Users.GetByEmail(ctx, patientEmail)
	if err != nil {
		return err
	}

	if err := s.Users.UpdateByID(ctx, patient.ID, bson.M{"homeLocation": loc}); err != nil {
		return err
	}
	return s.mirrorSnapshot(ctx, cg.ID, patientEmail, func(snap *model.PatientSnapshot) {
		snap.HomeLocation = loc
	})
}

// GetPatientData verifies both parties exist and returns the patient's
// authoritative record. The caregiver cache is never consulted on reads.
func (s *SyncService) GetPatientData(ctx context.Context, caregiverID primitive.ObjectID, patientEmail string) (model.User, error) {
	if _, err := s.Caregivers.GetByID(ctx, caregiverID); err != nil {
		return model.User{}, err
	}
	return s.Users.GetByEmail(ctx, normalizeEmail(patientEmail))
}

// mirrorSnapshot updates one slot of the caregiver's patientData map
// under a revision guard. Slot keys are emails and so contain dots; the
// whole map is rewritten rather than addressing the slot as a field path.
func (s *SyncService) mirrorSnapshot(ctx context.Context, caregiverID primitive.ObjectID, patientEmail string, apply func(*model.PatientSnapshot)) error {
	var lastErr error
	for i := 0; i < casAttempts; i++ {
		cg, err := s.Caregivers.GetByID(ctx, caregiverID)
		if err != nil {
			return err
		}
		if cg.PatientData == nil {
			cg.PatientData = map[string]model.PatientSnapshot{}
		}
		snap, ok := cg.PatientData[patientEmail]
		if !ok {
			snap = model.NewPatientSnapshot()
		}
		apply(&snap)
		snap.LastSync = time.Now().UTC()
		cg.PatientData[patientEmail] = snap

		err = s.Caregivers.UpdateWithRevision(ctx, cg.ID, cg.Revision, bson.M{"patientData": cg.PatientData})
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrStaleDocument) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func listOf(u *model.User, kind ListKind) []model.ListItem {
	switch kind {
	case KindReminders:
		return u.Reminders
	case KindMemories:
		return u.Memories
	case KindContacts:
		return u.EmergencyContacts
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
