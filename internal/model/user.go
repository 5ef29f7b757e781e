package model

import (
    "strconv"
    "time"

    "go.mongodb.org/mongo-driver/bson/primitive"
)

// MedicalInfo groups the free-text medical fields kept on a patient
// record.  All fields default to the empty string so clients always
// receive a fully shaped object.
type MedicalInfo struct {
    Conditions  string `bson:"conditions" json:"conditions"`
    Medications string `bson:"medications" json:"medications"`
    Allergies   string `bson:"allergies" json:"allergies"`
    BloodType   string `bson:"bloodType" json:"bloodType"`
}

// ListItem is an opaque client-authored record carried in the reminders,
// memories and emergencyContacts lists.  The server only cares about the
// id (merge key) and the provenance pair stamped on caregiver-authored
// items; everything else passes through untouched.
type ListItem map[string]interface{}

// ID returns the item's "id" value as a string, or "" when absent.  Items
// arrive from clients as free-form JSON, so ids may be encoded as strings
// or numbers.
func (it ListItem) ID() string {
    switch v := it["id"].(type) {
    case string:
        return v
    case float64:
        return strconv.FormatFloat(v, 'f', -1, 64)
    case int:
        return strconv.FormatInt(int64(v), 10)
    case int64:
        return strconv.FormatInt(v, 10)
    default:
        return ""
    }
}

// User represents a patient document in the `users` collection.
//
// Fields:
//  Email             – unique, stored lowercased; caregiver connections
//                      reference this field rather than the ObjectID.
//  Password          – bcrypt hash, never serialized to JSON.
//  MedicalInfo       – conditions/medications/allergies/bloodType.
//  HomeLocation      – nullable free-form geo object, replaced wholesale.
//  Reminders et al.  – ordered opaque lists merged by item id.
//  CaregiverEmail    – nullable back-reference to the connected caregiver.
//  Revision          – optimistic-concurrency counter; every
//                      read-modify-write bumps it via a filtered update.
type User struct {
    ID                primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
    Name              string                 `bson:"name" json:"name"`
    Email             string                 `bson:"email" json:"email"`
    Password          string                 `bson:"password" json:"-"`
    Phone             string                 `bson:"phone" json:"phone"`
    ProfileImage      *string                `bson:"profileImage" json:"profileImage"`
    Address           string                 `bson:"address" json:"address"`
    Age               string                 `bson:"age" json:"age"`
    MedicalInfo       MedicalInfo            `bson:"medicalInfo" json:"medicalInfo"`
    HomeLocation      map[string]interface{} `bson:"homeLocation" json:"homeLocation"`
    PasswordChangedAt *time.Time             `bson:"passwordChangedAt,omitempty" json:"-"`
    FCMToken          *string                `bson:"fcmToken" json:"-"`
    ExpoPushToken     *string                `bson:"expoPushToken,omitempty" json:"-"`
    Reminders         []ListItem             `bson:"reminders" json:"reminders"`
    Memories          []ListItem             `bson:"memories" json:"memories"`
    EmergencyContacts []ListItem             `bson:"emergencyContacts" json:"emergencyContacts"`
    LastSyncTime      time.Time              `bson:"lastSyncTime" json:"lastSyncTime"`
    CaregiverEmail    *string                `bson:"caregiverEmail" json:"caregiverEmail"`
    Revision          int64                  `bson:"revision" json:"-"`
}
