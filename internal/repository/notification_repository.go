package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mindflow/companion-backend/internal/model"
)

// NotificationRepo wraps the `notifications` collection.
type NotificationRepo struct{ C *mongo.Collection }

func NewNotificationRepo(db *mongo.Database) *NotificationRepo {
	return &NotificationRepo{C: db.Collection("notifications")}
}

// Create persists a notification. Type defaults to "system" when absent
// or outside the enum.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if !model.ValidNotificationType(n.Type) {
		n.Type = model.NotificationTypeSystem
	}
	if n.Data == nil {
		n.Data = map[string]interface{}{}
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	res, err := r.C.InsertOne(ctx, n)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		n.ID = id
	}
	return nil
}

// CountUnread returns the number of unread notifications for a user.
func (r *NotificationRepo) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.C.CountDocuments(ctx, bson.M{"userId": userID, "read": false})
}

// ListByUser returns up to limit notifications for a user, newest first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]model.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	cur, err := r.C.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	out := []model.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a single notification.
func (r *NotificationRepo) GetByID(ctx context.Context, id primitive.ObjectID) (model.Notification, error) {
	var n model.Notification
	err := r.C.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return n, ErrNotFound
	}
	return n, err
}

// MarkRead flips the read flag. Marking an already-read notification is a
// no-op, not an error.
func (r *NotificationRepo) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.C.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"read": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
