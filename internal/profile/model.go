package profile

import (
	"time"
)

type EmergencyContact struct {
	Name     string `bson:"name" json:"name"`
	Phone    string `bson:"phone" json:"phone"`
	Relation string `bson:"relation" json:"relation"`
}

type MedicalInfo struct {
	BloodType   string   `bson:"blood_type" json:"blood_type"`
	Allergies   []string `bson:"allergies" json:"allergies"`
	Conditions  []string `bson:"conditions" json:"conditions"`
	Medications []string `bson:"medications" json:"medications"`
}

type Location struct {
	Lat     float64 `bson:"lat" json:"lat"`
	Lng     float64 `bson:"lng" json:"lng"`
	Address string  `bson:"address" json:"address"`
}

// CachedEmergencyProfile is the snapshot dispatch runs on when the device
// has no connectivity. It is written proactively whenever the profile or
// location changes and read only at dispatch time.
type CachedEmergencyProfile struct {
	UserID            string             `json:"user_id"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts"`
	MedicalInfo       MedicalInfo        `json:"medical_info"`
	Location          Location           `json:"location"`
	CapturedAt        time.Time          `json:"captured_at"`
}
