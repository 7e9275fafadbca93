package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"emergency-service/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeQueue struct {
	mu       sync.Mutex
	messages map[string]*QueuedAlertMessage
	order    map[string]int
	inserted int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		messages: make(map[string]*QueuedAlertMessage),
		order:    make(map[string]int),
	}
}

func (q *fakeQueue) Enqueue(ctx context.Context, messages []QueuedAlertMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range messages {
		m := messages[i]
		q.messages[m.ID] = &m
		q.order[m.ID] = q.inserted
		q.inserted++
	}
	return nil
}

func (q *fakeQueue) Pending(ctx context.Context, userID string) ([]QueuedAlertMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []QueuedAlertMessage
	for _, m := range q.messages {
		if m.UserID == userID && m.Status == StatusQueued {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityRank != out[j].PriorityRank {
			return out[i].PriorityRank < out[j].PriorityRank
		}
		return q.order[out[i].ID] < q.order[out[j].ID]
	})
	return out, nil
}

func (q *fakeQueue) PendingUsers(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	seen := make(map[string]bool)
	var users []string
	for _, m := range q.messages {
		if m.Status == StatusQueued && !seen[m.UserID] {
			seen[m.UserID] = true
			users = append(users, m.UserID)
		}
	}
	return users, nil
}

func (q *fakeQueue) MarkDelivered(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.messages[id]
	if !ok {
		return fmt.Errorf("unknown message %s", id)
	}
	m.Status = StatusDelivered
	m.Delivered = true
	return nil
}

func (q *fakeQueue) RecordFailure(ctx context.Context, id string, at time.Time, nextRetryAt time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.messages[id]
	if !ok {
		return 0, fmt.Errorf("unknown message %s", id)
	}
	m.Attempts++
	m.LastAttemptAt = &at
	m.NextRetryAt = &nextRetryAt
	return m.Attempts, nil
}

func (q *fakeQueue) MarkFailed(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages[id].Status = StatusFailed
	return nil
}

func (q *fakeQueue) CountByStatus(ctx context.Context, userID string) (map[Status]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[Status]int)
	for _, m := range q.messages {
		if m.UserID == userID {
			counts[m.Status]++
		}
	}
	return counts, nil
}

func (q *fakeQueue) get(id string) QueuedAlertMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.messages[id]
}

type fakeTransport struct {
	mu      sync.Mutex
	succeed bool
	sends   []string
	block   chan struct{}
}

func (t *fakeTransport) Send(ctx context.Context, recipient, body string, priority Priority) (bool, error) {
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends = append(t.sends, recipient)
	if !t.succeed {
		return false, fmt.Errorf("gateway unreachable")
	}
	return true, nil
}

func (t *fakeTransport) sendCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

type offlineProbe struct{ online bool }

func (p *offlineProbe) Online(ctx context.Context) bool { return p.online }

type fakeEscalator struct {
	mu        sync.Mutex
	escalated []string
}

func (e *fakeEscalator) Escalate(ctx context.Context, msg QueuedAlertMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.escalated = append(e.escalated, msg.ID)
}

func testWorkerPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		MaxDeliveryAttempts: 5,
		RetryBackoffBase:    30 * time.Second,
	}
}

func newTestWorker(queue Queue, transport Transport, probe ConnectivityProbe, escalator Escalator) *Worker {
	return NewWorker(
		queue,
		TransportMap{ChannelSMS: transport},
		probe,
		escalator,
		nil,
		testWorkerPolicy(),
		zap.NewNop().Sugar(),
	)
}

func queuedMessage(id, userID string) QueuedAlertMessage {
	return QueuedAlertMessage{
		ID:           id,
		UserID:       userID,
		Channel:      ChannelSMS,
		Recipient:    "+84901234567",
		Body:         "EMERGENCY",
		Priority:     PriorityCritical,
		PriorityRank: priorityRank(PriorityCritical),
		Status:       StatusQueued,
		CreatedAt:    time.Now(),
	}
}

func TestFlushDeliversPending(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1"), queuedMessage("m2", "u1")}))
	require.NoError(t, worker.Flush(ctx, "u1"))

	assert.Equal(t, 2, transport.sendCount())
	assert.Equal(t, StatusDelivered, queue.get("m1").Status)
	assert.True(t, queue.get("m1").Delivered)
	assert.Equal(t, StatusDelivered, queue.get("m2").Status)
}

func TestFlushOfflineIsNoop(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true}
	worker := newTestWorker(queue, transport, &offlineProbe{online: false}, &fakeEscalator{})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))
	require.NoError(t, worker.Flush(ctx, "u1"))

	assert.Equal(t, 0, transport.sendCount())
	assert.Equal(t, StatusQueued, queue.get("m1").Status)
	assert.Equal(t, 0, queue.get("m1").Attempts)
}

func TestFlushTwiceDeliversOnce(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))
	require.NoError(t, worker.Flush(ctx, "u1"))
	require.NoError(t, worker.Flush(ctx, "u1"))

	assert.Equal(t, 1, transport.sendCount())
}

func TestFlushSingleFlight(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true, block: make(chan struct{})}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = worker.Flush(ctx, "u1")
	}()

	// wait for the first flush to be inside the transport
	require.Eventually(t, func() bool {
		mu := worker.userLock("u1")
		if mu.TryLock() {
			mu.Unlock()
			return false
		}
		return true
	}, time.Second, time.Millisecond)

	// the concurrent flush must bail out instead of sending again
	require.NoError(t, worker.Flush(ctx, "u1"))
	close(transport.block)
	wg.Wait()

	assert.Equal(t, 1, transport.sendCount())
}

func TestFlushFailureRecordsAttempt(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: false}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))
	require.NoError(t, worker.Flush(ctx, "u1"))

	msg := queue.get("m1")
	assert.Equal(t, 1, msg.Attempts)
	assert.NotNil(t, msg.LastAttemptAt)
	assert.NotNil(t, msg.NextRetryAt)
	assert.Equal(t, StatusQueued, msg.Status)
}

func TestFlushRespectsBackoffWindow(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: false}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))
	require.NoError(t, worker.Flush(ctx, "u1"))
	require.Equal(t, 1, transport.sendCount())

	// immediately after a failure the retry window has not elapsed
	require.NoError(t, worker.Flush(ctx, "u1"))
	assert.Equal(t, 1, transport.sendCount())

	// once the window passes the message is attempted again
	worker.now = func() time.Time { return time.Now().Add(time.Minute) }
	require.NoError(t, worker.Flush(ctx, "u1"))
	assert.Equal(t, 2, transport.sendCount())
}

func TestFlushTerminalFailureEscalates(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: false}
	escalator := &fakeEscalator{}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, escalator)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))

	// sweep well past the max attempt count, advancing the clock past every
	// backoff window
	base := time.Now()
	for i := 0; i < 8; i++ {
		worker.now = func() time.Time { return base.Add(time.Duration(i+1) * 2 * time.Hour) }
		require.NoError(t, worker.Flush(ctx, "u1"))
	}

	msg := queue.get("m1")
	assert.Equal(t, StatusFailed, msg.Status)
	assert.Equal(t, testWorkerPolicy().MaxDeliveryAttempts, msg.Attempts)
	assert.Equal(t, []string{"m1"}, escalator.escalated)
	assert.Equal(t, testWorkerPolicy().MaxDeliveryAttempts, transport.sendCount())
}

func TestFlushCriticalBeforeNormal(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	ctx := context.Background()

	normal := queuedMessage("m-normal", "u1")
	normal.Priority = PriorityNormal
	normal.PriorityRank = priorityRank(PriorityNormal)
	normal.Recipient = "+84900000001"

	critical := queuedMessage("m-critical", "u1")
	critical.Recipient = "+84900000002"

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{normal, critical}))
	require.NoError(t, worker.Flush(ctx, "u1"))

	require.Equal(t, 2, transport.sendCount())
	assert.Equal(t, "+84900000002", transport.sends[0])
	assert.Equal(t, "+84900000001", transport.sends[1])
}

func TestFlushAllSweepsEveryUser(t *testing.T) {
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1"), queuedMessage("m2", "u2")}))
	require.NoError(t, worker.FlushAll(ctx))

	assert.Equal(t, StatusDelivered, queue.get("m1").Status)
	assert.Equal(t, StatusDelivered, queue.get("m2").Status)
}

func TestFlushLeaseBlocksSecondInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true}
	worker := NewWorker(
		queue,
		TransportMap{ChannelSMS: transport},
		&offlineProbe{online: true},
		&fakeEscalator{},
		rdb,
		testWorkerPolicy(),
		zap.NewNop().Sugar(),
	)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))

	// another instance holds the lease
	require.NoError(t, rdb.SetNX(ctx, "dispatch:lock:u1", 1, time.Minute).Err())
	require.NoError(t, worker.Flush(ctx, "u1"))
	assert.Equal(t, 0, transport.sendCount())

	// lease released, flush proceeds
	require.NoError(t, rdb.Del(ctx, "dispatch:lock:u1").Err())
	require.NoError(t, worker.Flush(ctx, "u1"))
	assert.Equal(t, 1, transport.sendCount())
}
