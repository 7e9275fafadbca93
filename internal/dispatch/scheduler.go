package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ConnectivityChannel is the pub/sub channel the platform publishes on when
// connectivity returns.
const ConnectivityChannel = "emergency:connectivity"

// ResumeScheduler arranges for the worker to run again until nothing
// pending remains. Arm is idempotent: calling it twice never creates a
// second timer or subscription.
type ResumeScheduler interface {
	Arm()
	Disarm()
}

// PollScheduler is the fallback: a periodic sweep that cancels itself once
// the queue has no pending messages left.
type PollScheduler struct {
	cron     *cron.Cron
	worker   *Worker
	queue    Queue
	interval time.Duration
	logger   *zap.SugaredLogger

	armed   atomic.Bool
	entryID cron.EntryID
}

func NewPollScheduler(c *cron.Cron, worker *Worker, queue Queue, interval time.Duration, logger *zap.SugaredLogger) *PollScheduler {
	return &PollScheduler{
		cron:     c,
		worker:   worker,
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
}

func (s *PollScheduler) Arm() {
	if !s.armed.CompareAndSwap(false, true) {
		return
	}
	s.entryID = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.sweep))
	s.logger.Infof("Armed delivery sweep every %s", s.interval)
}

func (s *PollScheduler) Disarm() {
	if !s.armed.CompareAndSwap(true, false) {
		return
	}
	s.cron.Remove(s.entryID)
	s.logger.Info("Disarmed delivery sweep")
}

func (s *PollScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if err := s.worker.FlushAll(ctx); err != nil {
		s.logger.Errorw("Sweep flush failed", "error", err)
		return
	}

	users, err := s.queue.PendingUsers(ctx)
	if err != nil {
		s.logger.Errorw("Sweep could not check queue", "error", err)
		return
	}
	if len(users) == 0 {
		s.Disarm()
	}
}

// HookScheduler rides the platform's connectivity-restored signal: a redis
// pub/sub message triggers an immediate full flush.
type HookScheduler struct {
	rdb    *redis.Client
	worker *Worker
	logger *zap.SugaredLogger

	armed  atomic.Bool
	cancel context.CancelFunc
}

func NewHookScheduler(rdb *redis.Client, worker *Worker, logger *zap.SugaredLogger) *HookScheduler {
	return &HookScheduler{
		rdb:    rdb,
		worker: worker,
		logger: logger,
	}
}

func (s *HookScheduler) Arm() {
	if !s.armed.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	pubsub := s.rdb.Subscribe(ctx, ConnectivityChannel)

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				s.logger.Info("Connectivity restored, flushing queue")
				if err := s.worker.FlushAll(ctx); err != nil {
					s.logger.Errorw("Resume flush failed", "error", err)
				}
			}
		}
	}()

	s.logger.Infof("Armed connectivity hook on %s", ConnectivityChannel)
}

func (s *HookScheduler) Disarm() {
	if !s.armed.CompareAndSwap(true, false) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
}
