// Package service holds the connection and sync logic that sits between
// the HTTP handlers and the repositories.  Handlers never write the
// connection fields (patientEmail, connectedPatients, patientData
// membership, caregiverEmail) directly; every mutation of either side of
// the caregiver–patient link goes through the ConnectionManager so the
// two collections cannot drift through ad-hoc writes.
package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mindflow/companion-backend/internal/model"
)

// UserStore is the slice of the user repository the services depend on.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (model.User, error)
	UpdateByID(ctx context.Context, id primitive.ObjectID, set bson.M) error
	UpdateWithRevision(ctx context.Context, id primitive.ObjectID, revision int64, set bson.M) error
	UnsetCaregiverRefs(ctx context.Context, caregiverEmail string) (int64, error)
	UnsetCaregiverRefByPatient(ctx context.Context, patientEmail string) error
}

// CaregiverStore is the slice of the caregiver repository the services
// depend on.
type CaregiverStore interface {
	GetByEmail(ctx context.Context, email string) (model.Caregiver, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (model.Caregiver, error)
	UpdateWithRevision(ctx context.Context, id primitive.ObjectID, revision int64, set bson.M) error
	FindReferencing(ctx context.Context, patientEmail string) ([]model.Caregiver, error)
}
