package emergency

import (
	"emergency-service/internal/profile"
)

type LocationPayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type TriggerEmergencyRequest struct {
	UserID        string          `json:"user_id"`
	Location      LocationPayload `json:"location"`
	Description   string          `json:"description"`
	EmergencyType string          `json:"emergency_type"`
}

type FalseAlarmRequest struct {
	UserID string `json:"user_id"`
}

type SaveProfileRequest struct {
	UserID            string                     `json:"user_id"`
	EmergencyContacts []profile.EmergencyContact `json:"emergency_contacts"`
	MedicalInfo       profile.MedicalInfo        `json:"medical_info"`
	Location          profile.Location           `json:"location"`
}
