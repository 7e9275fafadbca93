package gateway

import (
	"context"
	"fmt"

	"emergency-service/internal/dispatch"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// escalationTopic receives terminal delivery failures so operations sees
// them even when every direct channel is down.
const escalationTopic = "emergency-escalations"

// PushTransport delivers data-channel alerts as firebase messages. The
// recipient is the device token.
type PushTransport struct {
	app    *firebase.App
	logger *zap.SugaredLogger
}

func NewPushTransport(app *firebase.App, logger *zap.SugaredLogger) *PushTransport {
	return &PushTransport{
		app:    app,
		logger: logger,
	}
}

func (t *PushTransport) Send(ctx context.Context, recipient, body string, priority dispatch.Priority) (bool, error) {

	client, err := t.app.Messaging(ctx)
	if err != nil {
		return false, err
	}

	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: "🚨 Emergency alert",
			Body:  body,
		},
		Data: map[string]string{
			"priority": string(priority),
		},
		Token: recipient,
	}

	if _, err := client.Send(ctx, msg); err != nil {
		return false, err
	}

	return true, nil
}

// Escalate publishes a terminal delivery failure to the operations topic.
func (t *PushTransport) Escalate(ctx context.Context, failed dispatch.QueuedAlertMessage) {

	client, err := t.app.Messaging(ctx)
	if err != nil {
		t.logger.Errorw("Escalation client error", "error", err)
		return
	}

	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: "Alert delivery failed",
			Body:  fmt.Sprintf("Could not deliver emergency alert for user %s after %d attempts", failed.UserID, failed.Attempts),
		},
		Data: map[string]string{
			"message_id": failed.ID,
			"user_id":    failed.UserID,
			"recipient":  failed.Recipient,
		},
		Topic: escalationTopic,
	}

	if _, err := client.Send(ctx, msg); err != nil {
		t.logger.Errorw("Escalation send failed", "message_id", failed.ID, "error", err)
		return
	}

	t.logger.Infow("Escalated failed alert", "message_id", failed.ID, "user_id", failed.UserID)
}
