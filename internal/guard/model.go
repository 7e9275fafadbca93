package guard

import (
	"time"
)

// maxAttemptHistory bounds the per-user attempt ring.
const maxAttemptHistory = 50

type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// EmergencyAttempt is immutable once recorded.
type EmergencyAttempt struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Location  Location  `bson:"location" json:"location"`
	Verified  bool      `bson:"verified" json:"verified"`
	Completed bool      `bson:"completed" json:"completed"`
}

type UserEmergencyHistory struct {
	UserID           string             `bson:"_id" json:"user_id"`
	Attempts         []EmergencyAttempt `bson:"attempts" json:"attempts"`
	FalseAlarmCount  int                `bson:"false_alarm_count" json:"false_alarm_count"`
	LastEmergencyAt  time.Time          `bson:"last_emergency_at" json:"last_emergency_at"`
	Suspended        bool               `bson:"suspended" json:"suspended"`
	SuspensionEndsAt *time.Time         `bson:"suspension_ends_at,omitempty" json:"suspension_ends_at,omitempty"`
}

// VerifyResult is the outcome of the legitimacy check for one attempt.
type VerifyResult struct {
	Verified   bool     `json:"verified"`
	Confidence float64  `json:"confidence"`
	Warnings   []string `json:"warnings"`
}

// FalseAlarmResult reports the counter after a false-alarm report and any
// suspension it triggered.
type FalseAlarmResult struct {
	FalseAlarmCount int        `json:"false_alarm_count"`
	Suspended       bool       `json:"suspended"`
	SuspendedUntil  *time.Time `json:"suspended_until,omitempty"`
}
