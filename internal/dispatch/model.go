package dispatch

import (
	"time"
)

type Channel string

const (
	ChannelSMS  Channel = "sms"
	ChannelCall Channel = "call"
	ChannelData Channel = "data"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusDelivered Status = "delivered"
	// StatusFailed is terminal: the message exhausted its attempts and is no
	// longer retried. Reaching it fires the escalation side channel.
	StatusFailed Status = "failed"
)

// QueuedAlertMessage is one composed outbound alert. Only attempts,
// last_attempt_at, next_retry_at and the delivery state change after
// enqueue.
type QueuedAlertMessage struct {
	ID            string     `bson:"_id" json:"id"`
	UserID        string     `bson:"user_id" json:"user_id"`
	Channel       Channel    `bson:"channel" json:"channel"`
	Recipient     string     `bson:"recipient" json:"recipient"`
	Body          string     `bson:"body" json:"body"`
	Priority      Priority   `bson:"priority" json:"priority"`
	PriorityRank  int        `bson:"priority_rank" json:"-"`
	Attempts      int        `bson:"attempts" json:"attempts"`
	LastAttemptAt *time.Time `bson:"last_attempt_at,omitempty" json:"last_attempt_at,omitempty"`
	NextRetryAt   *time.Time `bson:"next_retry_at,omitempty" json:"next_retry_at,omitempty"`
	Status        Status     `bson:"status" json:"status"`
	Delivered     bool       `bson:"delivered" json:"delivered"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	default:
		return 2
	}
}
