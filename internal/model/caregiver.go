package model

import (
    "time"

    "go.mongodb.org/mongo-driver/bson/primitive"
)

// PatientSnapshot is the denormalized per-patient cache a caregiver keeps
// under patientData.  It mirrors what the caregiver last pushed and is
// never authoritative; reads of patient data go to the users collection.
type PatientSnapshot struct {
    Reminders         []ListItem             `bson:"reminders" json:"reminders"`
    Memories          []ListItem             `bson:"memories" json:"memories"`
    EmergencyContacts []ListItem             `bson:"emergencyContacts" json:"emergencyContacts"`
    HomeLocation      map[string]interface{} `bson:"homeLocation" json:"homeLocation"`
    LastSync          time.Time              `bson:"lastSync" json:"lastSync"`
}

// NewPatientSnapshot returns an empty snapshot with initialized lists.
func NewPatientSnapshot() PatientSnapshot {
    return PatientSnapshot{
        Reminders:         []ListItem{},
        Memories:          []ListItem{},
        EmergencyContacts: []ListItem{},
        HomeLocation:      nil,
        LastSync:          time.Now().UTC(),
    }
}

// Caregiver represents a caregiver document in the `caregivers`
// collection.  PatientEmail is the single primary connection;
// ConnectedPatients is the active set of patient emails the caregiver is
// linked to.  Both must reference users that currently exist, repaired
// lazily on reads that touch them.
type Caregiver struct {
    ID                primitive.ObjectID         `bson:"_id,omitempty" json:"id"`
    Name              string                     `bson:"name" json:"name"`
    Email             string                     `bson:"email" json:"email"`
    Password          string                     `bson:"password" json:"-"`
    Phone             string                     `bson:"phone" json:"phone"`
    ProfileImage      *string                    `bson:"profileImage" json:"profileImage"`
    CreatedAt         time.Time                  `bson:"createdAt" json:"createdAt"`
    PatientEmail      *string                    `bson:"patientEmail" json:"patientEmail"`
    FCMToken          *string                    `bson:"fcmToken" json:"-"`
    PatientData       map[string]PatientSnapshot `bson:"patientData" json:"patientData"`
    ConnectedPatients []string                   `bson:"connectedPatients" json:"connectedPatients"`
    Revision          int64                      `bson:"revision" json:"-"`
}

// References reports whether the caregiver links to the patient email
// through the primary connection, the active set, or a patientData slot.
// Sync endpoints mirror into a slot without requiring a connection, so a
// slot alone is a live reference the delete cascade must clear.
func (cg *Caregiver) References(patientEmail string) bool {
    if cg.PatientEmail != nil && *cg.PatientEmail == patientEmail {
        return true
    }
    for _, e := range cg.ConnectedPatients {
        if e == patientEmail {
            return true
        }
    }
    _, ok := cg.PatientData[patientEmail]
    return ok
}
