package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mindflow/companion-backend/internal/model"
	"github.com/mindflow/companion-backend/internal/utils"
)

// CaregiverRepo wraps the `caregivers` collection.
type CaregiverRepo struct{ C *mongo.Collection }

func NewCaregiverRepo(db *mongo.Database) *CaregiverRepo {
	return &CaregiverRepo{C: db.Collection("caregivers")}
}

// Create inserts a new caregiver, hashing the plaintext password.
func (r *CaregiverRepo) Create(ctx context.Context, cg *model.Caregiver) (primitive.ObjectID, error) {
	cg.Email = strings.ToLower(strings.TrimSpace(cg.Email))
	hash, err := utils.HashPassword(cg.Password)
	if err != nil {
		return primitive.NilObjectID, err
	}
	cg.Password = hash
	cg.CreatedAt = time.Now().UTC()
	if cg.PatientData == nil {
		cg.PatientData = map[string]model.PatientSnapshot{}
	}
	if cg.ConnectedPatients == nil {
		cg.ConnectedPatients = []string{}
	}

	res, err := r.C.InsertOne(ctx, cg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, ErrEmailExists
		}
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	cg.ID = id
	return id, nil
}

// GetByEmail fetches a caregiver by normalized email.
func (r *CaregiverRepo) GetByEmail(ctx context.Context, email string) (model.Caregiver, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var cg model.Caregiver
	err := r.C.FindOne(ctx, bson.M{"email": email}).Decode(&cg)
	if err == mongo.ErrNoDocuments {
		return cg, ErrNotFound
	}
	return cg, err
}

// GetByID fetches a caregiver by id.
func (r *CaregiverRepo) GetByID(ctx context.Context, id primitive.ObjectID) (model.Caregiver, error) {
	var cg model.Caregiver
	err := r.C.FindOne(ctx, bson.M{"_id": id}).Decode(&cg)
	if err == mongo.ErrNoDocuments {
		return cg, ErrNotFound
	}
	return cg, err
}

// UpdateByID applies a plain $set without revision checking.
func (r *CaregiverRepo) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) error {
	res, err := r.C.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateWithRevision applies a $set guarded by the revision the caller
// read, incrementing it on success.
func (r *CaregiverRepo) UpdateWithRevision(ctx context.Context, id primitive.ObjectID, revision int64, set bson.M) error {
	res, err := r.C.UpdateOne(ctx,
		bson.M{"_id": id, "revision": revision},
		bson.M{"$set": set, "$inc": bson.M{"revision": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if n, err := r.C.CountDocuments(ctx, bson.M{"_id": id}); err == nil && n == 0 {
			return ErrNotFound
		}
		return ErrStaleDocument
	}
	return nil
}

// UpdatePassword rehashes and stores a new password.
func (r *CaregiverRepo) UpdatePassword(ctx context.Context, id primitive.ObjectID, plain string) error {
	hash, err := utils.HashPassword(plain)
	if err != nil {
		return err
	}
	return r.UpdateByID(ctx, id, bson.M{"password": hash})
}

// Delete removes a caregiver by id, returning the deleted document so
// callers can cascade-clean user back-references.
func (r *CaregiverRepo) Delete(ctx context.Context, id primitive.ObjectID) (model.Caregiver, error) {
	var cg model.Caregiver
	err := r.C.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&cg)
	if err == mongo.ErrNoDocuments {
		return cg, ErrNotFound
	}
	return cg, err
}

// DeleteByEmail removes a caregiver matched by email.
func (r *CaregiverRepo) DeleteByEmail(ctx context.Context, email string) (model.Caregiver, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var cg model.Caregiver
	err := r.C.FindOneAndDelete(ctx, bson.M{"email": email}).Decode(&cg)
	if err == mongo.ErrNoDocuments {
		return cg, ErrNotFound
	}
	return cg, err
}

// FindReferencing returns every caregiver referencing the patient email:
// as the primary connection, in the active set, or holding a patientData
// slot. Used by the patient-delete cascade. Slot keys are emails and
// contain dots, so slot holders cannot be matched as a field path; every
// caregiver with slots is fetched as a candidate and filtered here.
func (r *CaregiverRepo) FindReferencing(ctx context.Context, patientEmail string) ([]model.Caregiver, error) {
	patientEmail = strings.ToLower(strings.TrimSpace(patientEmail))
	cur, err := r.C.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"patientEmail": patientEmail},
		bson.M{"connectedPatients": patientEmail},
		bson.M{"patientData": bson.M{"$exists": true, "$ne": bson.M{}}},
	}})
	if err != nil {
		return nil, err
	}
	var candidates []model.Caregiver
	if err := cur.All(ctx, &candidates); err != nil {
		return nil, err
	}
	out := make([]model.Caregiver, 0, len(candidates))
	for _, cg := range candidates {
		if cg.References(patientEmail) {
			out = append(out, cg)
		}
	}
	return out, nil
}
