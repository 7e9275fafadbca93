package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPollFixture(t *testing.T, transportUp bool) (*PollScheduler, *fakeQueue, *fakeTransport, *cron.Cron) {
	t.Helper()
	queue := newFakeQueue()
	transport := &fakeTransport{succeed: transportUp}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	c := cron.New(cron.WithSeconds())
	s := NewPollScheduler(c, worker, queue, 30*time.Second, zap.NewNop().Sugar())
	return s, queue, transport, c
}

func TestPollSchedulerArmIdempotent(t *testing.T) {
	s, _, _, c := newPollFixture(t, true)

	s.Arm()
	s.Arm()
	assert.Len(t, c.Entries(), 1)

	s.Disarm()
	s.Disarm()
	assert.Empty(t, c.Entries())
}

func TestPollSchedulerRearmsAfterDisarm(t *testing.T) {
	s, _, _, c := newPollFixture(t, true)

	s.Arm()
	s.Disarm()
	s.Arm()
	assert.Len(t, c.Entries(), 1)
}

func TestPollSweepDisarmsWhenDrained(t *testing.T) {
	s, queue, transport, c := newPollFixture(t, true)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))
	s.Arm()

	s.sweep()

	assert.Equal(t, 1, transport.sendCount())
	assert.Equal(t, StatusDelivered, queue.get("m1").Status)
	assert.Empty(t, c.Entries())
}

func TestPollSweepStaysArmedWhilePending(t *testing.T) {
	s, queue, _, c := newPollFixture(t, false)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))
	s.Arm()

	s.sweep()

	assert.Equal(t, StatusQueued, queue.get("m1").Status)
	assert.Len(t, c.Entries(), 1)
}

func TestHookSchedulerFlushesOnSignal(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	queue := newFakeQueue()
	transport := &fakeTransport{succeed: true}
	worker := newTestWorker(queue, transport, &offlineProbe{online: true}, &fakeEscalator{})
	s := NewHookScheduler(rdb, worker, zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, []QueuedAlertMessage{queuedMessage("m1", "u1")}))

	s.Arm()
	defer s.Disarm()

	// give the subscription a moment to come up before publishing
	require.Eventually(t, func() bool {
		return mr.Publish(ConnectivityChannel, "up") > 0
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return queue.get("m1").Status == StatusDelivered
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, transport.sendCount())
}

func TestHookSchedulerArmIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	worker := newTestWorker(newFakeQueue(), &fakeTransport{succeed: true}, &offlineProbe{online: true}, &fakeEscalator{})
	s := NewHookScheduler(rdb, worker, zap.NewNop().Sugar())

	s.Arm()
	s.Arm()
	assert.True(t, s.armed.Load())

	s.Disarm()
	s.Disarm()
	assert.False(t, s.armed.Load())
}
