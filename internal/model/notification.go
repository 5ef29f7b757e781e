package model

import (
    "time"

    "go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification type enum values.  Unknown values are coerced to "system".
const (
    NotificationTypeReminder = "reminder"
    NotificationTypeLocation = "location"
    NotificationTypeActivity = "activity"
    NotificationTypeMessage  = "message"
    NotificationTypeSystem   = "system"
    NotificationTypeOther    = "other"
)

// ValidNotificationType reports whether t is one of the enum values.
func ValidNotificationType(t string) bool {
    switch t {
    case NotificationTypeReminder, NotificationTypeLocation, NotificationTypeActivity,
        NotificationTypeMessage, NotificationTypeSystem, NotificationTypeOther:
        return true
    }
    return false
}

// Notification belongs to exactly one user.  Lifecycle: created when a
// push is dispatched to a user id, marked read once, never deleted.
type Notification struct {
    ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
    UserID    primitive.ObjectID     `bson:"userId" json:"userId"`
    Title     string                 `bson:"title" json:"title"`
    Body      string                 `bson:"body" json:"body"`
    Read      bool                   `bson:"read" json:"read"`
    Data      map[string]interface{} `bson:"data" json:"data"`
    Type      string                 `bson:"type" json:"type"`
    CreatedAt time.Time              `bson:"createdAt" json:"createdAt"`
    UpdatedAt time.Time              `bson:"updatedAt" json:"updatedAt"`
}
