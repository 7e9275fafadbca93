package dispatch

import (
	"context"
	"sync"
	"time"

	"emergency-service/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockLease = 30 * time.Second

// Worker drains the delivery queue. Per message the transitions are
// queued -> sending -> delivered, back to queued on a failed attempt, and
// failed once attempts are exhausted.
type Worker struct {
	queue      Queue
	transports TransportMap
	probe      ConnectivityProbe
	escalator  Escalator
	rdb        *redis.Client // optional, cross-instance flush lease
	policy     config.PolicyConfig
	logger     *zap.SugaredLogger
	now        func() time.Time

	locks sync.Map // userID -> *sync.Mutex
}

func NewWorker(
	queue Queue,
	transports TransportMap,
	probe ConnectivityProbe,
	escalator Escalator,
	rdb *redis.Client,
	policy config.PolicyConfig,
	logger *zap.SugaredLogger,
) *Worker {
	return &Worker{
		queue:      queue,
		transports: transports,
		probe:      probe,
		escalator:  escalator,
		rdb:        rdb,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
	}
}

// Flush attempts every pending message for the user. Offline is a no-op,
// not an error. Concurrent flushes for the same user are single-flight: the
// second caller returns immediately instead of double-delivering.
func (w *Worker) Flush(ctx context.Context, userID string) error {

	if !w.probe.Online(ctx) {
		w.logger.Debugw("Offline, skipping flush", "user_id", userID)
		return nil
	}

	mu := w.userLock(userID)
	if !mu.TryLock() {
		return nil
	}
	defer mu.Unlock()

	if !w.acquireLease(ctx, userID) {
		return nil
	}
	defer w.releaseLease(ctx, userID)

	pending, err := w.queue.Pending(ctx, userID)
	if err != nil {
		return err
	}

	now := w.now()
	for _, msg := range pending {
		if msg.NextRetryAt != nil && now.Before(*msg.NextRetryAt) {
			continue
		}
		w.attempt(ctx, msg)
	}

	return nil
}

// FlushAll sweeps every user that still has pending messages.
func (w *Worker) FlushAll(ctx context.Context) error {

	users, err := w.queue.PendingUsers(ctx)
	if err != nil {
		return err
	}

	for _, userID := range users {
		if err := w.Flush(ctx, userID); err != nil {
			w.logger.Errorw("Flush failed", "user_id", userID, "error", err)
		}
	}

	return nil
}

func (w *Worker) attempt(ctx context.Context, msg QueuedAlertMessage) {

	transport, ok := w.transports[msg.Channel]
	if !ok {
		w.logger.Errorw("No transport for channel", "channel", msg.Channel, "message_id", msg.ID)
		w.fail(ctx, msg)
		return
	}

	sent, err := transport.Send(ctx, msg.Recipient, msg.Body, msg.Priority)
	if err == nil && sent {
		if err := w.queue.MarkDelivered(ctx, msg.ID); err != nil {
			w.logger.Errorw("Delivered but could not mark", "message_id", msg.ID, "error", err)
		}
		return
	}

	if err != nil {
		w.logger.Warnw("Transport error", "message_id", msg.ID, "error", err)
	}

	w.fail(ctx, msg)
}

func (w *Worker) fail(ctx context.Context, msg QueuedAlertMessage) {

	now := w.now()
	attempts, err := w.queue.RecordFailure(ctx, msg.ID, now, now.Add(w.backoff(msg.Attempts+1)))
	if err != nil {
		w.logger.Errorw("Could not record attempt failure", "message_id", msg.ID, "error", err)
		return
	}

	if attempts < w.policy.MaxDeliveryAttempts {
		return
	}

	if err := w.queue.MarkFailed(ctx, msg.ID); err != nil {
		w.logger.Errorw("Could not mark terminal failure", "message_id", msg.ID, "error", err)
		return
	}

	w.logger.Errorw("Alert exhausted delivery attempts",
		"message_id", msg.ID,
		"user_id", msg.UserID,
		"attempts", attempts,
	)

	if w.escalator != nil {
		w.escalator.Escalate(ctx, msg)
	}
}

// backoff doubles per attempt: base, 2*base, 4*base, ...
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.policy.RetryBackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d > time.Hour {
			return time.Hour
		}
	}
	return d
}

func (w *Worker) userLock(userID string) *sync.Mutex {
	mu, _ := w.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (w *Worker) acquireLease(ctx context.Context, userID string) bool {
	if w.rdb == nil {
		return true
	}
	ok, err := w.rdb.SetNX(ctx, "dispatch:lock:"+userID, 1, lockLease).Result()
	if err != nil {
		// redis being down must not stop delivery; the local mutex still
		// guards this instance
		w.logger.Warnw("Flush lease unavailable", "user_id", userID, "error", err)
		return true
	}
	return ok
}

func (w *Worker) releaseLease(ctx context.Context, userID string) {
	if w.rdb == nil {
		return
	}
	if err := w.rdb.Del(ctx, "dispatch:lock:"+userID).Err(); err != nil {
		w.logger.Warnw("Could not release flush lease", "user_id", userID, "error", err)
	}
}
