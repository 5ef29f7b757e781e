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

// UserRepo wraps the `users` collection.
type UserRepo struct{ C *mongo.Collection }

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{C: db.Collection("users")}
}

// Create inserts a new user. The plaintext password is hashed here so no
// caller ever persists one; passwordChangedAt is stamped alongside.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (primitive.ObjectID, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(u.Password)
	if err != nil {
		return primitive.NilObjectID, err
	}
	u.Password = hash
	now := time.Now().UTC()
	changed := now.Add(-time.Second)
	u.PasswordChangedAt = &changed
	if u.Reminders == nil {
		u.Reminders = []model.ListItem{}
	}
	if u.Memories == nil {
		u.Memories = []model.ListItem{}
	}
	if u.EmergencyContacts == nil {
		u.EmergencyContacts = []model.ListItem{}
	}
	u.LastSyncTime = now

	res, err := r.C.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, ErrEmailExists
		}
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	u.ID = id
	return id, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.C.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (model.User, error) {
	var u model.User
	err := r.C.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return u, ErrNotFound
	}
	return u, err
}

// UpdateByID applies a $set of the given fields without revision checking.
// Used for single-field writes where last-writer-wins is acceptable
// (device tokens, profile fields).
func (r *UserRepo) UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) error {
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
// read, incrementing it on success. A vanished document yields
// ErrNotFound; a moved revision yields ErrStaleDocument.
func (r *UserRepo) UpdateWithRevision(ctx context.Context, id primitive.ObjectID, revision int64, set bson.M) error {
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

// UpdatePassword rehashes and stores a new password, stamping
// passwordChangedAt. This is the only write path for the password field
// besides Create.
func (r *UserRepo) UpdatePassword(ctx context.Context, id primitive.ObjectID, plain string) error {
	hash, err := utils.HashPassword(plain)
	if err != nil {
		return err
	}
	return r.UpdateByID(ctx, id, bson.M{
		"password":          hash,
		"passwordChangedAt": time.Now().UTC().Add(-time.Second),
	})
}

// Delete removes a user and returns the deleted document so callers can
// run connection cascades against its email.
func (r *UserRepo) Delete(ctx context.Context, id primitive.ObjectID) (model.User, error) {
	var u model.User
	err := r.C.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return u, ErrNotFound
	}
	return u, err
}

// UnsetCaregiverRefs strips the caregiver back-reference (and its side
// fields) from every user pointing at the given caregiver email. Returns
// the number of users modified.
func (r *UserRepo) UnsetCaregiverRefs(ctx context.Context, caregiverEmail string) (int64, error) {
	caregiverEmail = strings.ToLower(strings.TrimSpace(caregiverEmail))
	res, err := r.C.UpdateMany(ctx,
		bson.M{"caregiverEmail": caregiverEmail},
		bson.M{"$unset": bson.M{"caregiverEmail": "", "caregiverName": "", "caregiverId": ""}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// UnsetCaregiverRefByPatient clears the caregiver back-reference on a
// single patient, matched by email.
func (r *UserRepo) UnsetCaregiverRefByPatient(ctx context.Context, patientEmail string) error {
	patientEmail = strings.ToLower(strings.TrimSpace(patientEmail))
	_, err := r.C.UpdateOne(ctx,
		bson.M{"email": patientEmail},
		bson.M{"$unset": bson.M{"caregiverEmail": "", "caregiverName": "", "caregiverId": ""}})
	return err
}
