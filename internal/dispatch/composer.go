package dispatch

import (
	"fmt"
	"strings"
	"time"

	"emergency-service/internal/profile"
)

// Composer turns an accepted emergency plus the cached profile into the
// outbound alert messages. Compose is pure: same inputs and timestamp, same
// messages.
type Composer struct {
	responders map[string]string
}

func NewComposer(responders map[string]string) *Composer {
	return &Composer{
		responders: responders,
	}
}

func (c *Composer) Compose(p *profile.CachedEmergencyProfile, emergencyType, description string, at time.Time) []QueuedAlertMessage {

	var messages []QueuedAlertMessage

	body := c.contactBody(p, emergencyType, description, at)
	for _, contact := range p.EmergencyContacts {
		messages = append(messages, newMessage(p.UserID, ChannelSMS, contact.Phone, body, PriorityCritical, at))
	}

	if number, ok := c.responders[strings.ToLower(emergencyType)]; ok && number != "" {
		messages = append(messages, newMessage(p.UserID, ChannelSMS, number, c.responderBody(p, emergencyType), PriorityCritical, at))
	}

	return messages
}

func (c *Composer) contactBody(p *profile.CachedEmergencyProfile, emergencyType, description string, at time.Time) string {
	return fmt.Sprintf(
		"EMERGENCY (%s): %s\nLocation: %s (%.5f, %.5f)\nTime: %s\nBlood type: %s | Allergies: %s | Conditions: %s",
		strings.ToUpper(emergencyType),
		description,
		p.Location.Address,
		p.Location.Lat,
		p.Location.Lng,
		at.Format("2006-01-02 15:04:05"),
		p.MedicalInfo.BloodType,
		joinOrNone(p.MedicalInfo.Allergies),
		joinOrNone(p.MedicalInfo.Conditions),
	)
}

// responderBody is the condensed template: location, a reachable contact and
// the medical summary only, to fit channel length limits.
func (c *Composer) responderBody(p *profile.CachedEmergencyProfile, emergencyType string) string {
	contact := "none on record"
	if len(p.EmergencyContacts) > 0 {
		contact = fmt.Sprintf("%s %s", p.EmergencyContacts[0].Name, p.EmergencyContacts[0].Phone)
	}

	return fmt.Sprintf(
		"EMERGENCY %s at %s (%.5f,%.5f). Blood type %s, allergies: %s, conditions: %s. Contact: %s",
		strings.ToUpper(emergencyType),
		p.Location.Address,
		p.Location.Lat,
		p.Location.Lng,
		p.MedicalInfo.BloodType,
		joinOrNone(p.MedicalInfo.Allergies),
		joinOrNone(p.MedicalInfo.Conditions),
		contact,
	)
}

func newMessage(userID string, channel Channel, recipient, body string, priority Priority, at time.Time) QueuedAlertMessage {
	return QueuedAlertMessage{
		ID:           messageID(recipient, at),
		UserID:       userID,
		Channel:      channel,
		Recipient:    recipient,
		Body:         body,
		Priority:     priority,
		PriorityRank: priorityRank(priority),
		Status:       StatusQueued,
		CreatedAt:    at,
	}
}

// messageID is derived from recipient and timestamp so re-composing the same
// dispatch cannot enqueue duplicates.
func messageID(recipient string, at time.Time) string {
	sanitized := strings.Map(func(r rune) rune {
		if r == '+' || r == ' ' {
			return -1
		}
		return r
	}, recipient)
	return fmt.Sprintf("%s-%d", sanitized, at.UnixMilli())
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
