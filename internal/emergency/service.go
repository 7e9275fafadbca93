package emergency

import (
	"context"
	"errors"
	"time"

	"emergency-service/config"
	"emergency-service/internal/dispatch"
	"emergency-service/internal/guard"
	"emergency-service/internal/profile"

	"go.uber.org/zap"
)

var validEmergencyTypes = map[string]bool{
	"medical": true,
	"fire":    true,
	"police":  true,
	"general": true,
}

// TriggerResult is returned for accepted and low-confidence attempts alike.
// Denials (rate limit, suspension) come back as *guard.DeniedError instead.
type TriggerResult struct {
	Verified       bool     `json:"verified"`
	Confidence     float64  `json:"confidence"`
	Warnings       []string `json:"warnings"`
	MessagesQueued int      `json:"messages_queued"`
}

type QueueStatusResult struct {
	Pending   []dispatch.QueuedAlertMessage `json:"pending"`
	Delivered int                           `json:"delivered"`
	Failed    int                           `json:"failed"`
}

type EmergencyService interface {
	Trigger(ctx context.Context, req *TriggerEmergencyRequest) (*TriggerResult, error)
	ReportFalseAlarm(ctx context.Context, userID string) (*guard.FalseAlarmResult, error)
	SaveProfile(ctx context.Context, req *SaveProfileRequest) error
	GetProfile(ctx context.Context, userID string) (*profile.CachedEmergencyProfile, error)
	QueueStatus(ctx context.Context, userID string) (*QueueStatusResult, error)
	History(ctx context.Context, userID string) (*guard.UserEmergencyHistory, error)
	Resume(ctx context.Context) error
}

type emergencyService struct {
	guard     guard.GuardService
	histories guard.HistoryRepository
	profiles  profile.CacheService
	composer  *dispatch.Composer
	queue     dispatch.Queue
	worker    *dispatch.Worker
	scheduler dispatch.ResumeScheduler
	policy    config.PolicyConfig
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewEmergencyService(
	guardService guard.GuardService,
	histories guard.HistoryRepository,
	profiles profile.CacheService,
	composer *dispatch.Composer,
	queue dispatch.Queue,
	worker *dispatch.Worker,
	scheduler dispatch.ResumeScheduler,
	policy config.PolicyConfig,
	logger *zap.SugaredLogger,
) EmergencyService {
	return &emergencyService{
		guard:     guardService,
		histories: histories,
		profiles:  profiles,
		composer:  composer,
		queue:     queue,
		worker:    worker,
		scheduler: scheduler,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// Trigger runs the full path: gate the attempt, record it, and if accepted
// compose, enqueue, flush and arm the resume scheduler. Once Enqueue has
// returned the alert survives a crash; everything after it is best effort
// because the sweep will finish the job.
func (s *emergencyService) Trigger(ctx context.Context, req *TriggerEmergencyRequest) (*TriggerResult, error) {

	if req.UserID == "" {
		return nil, errors.New("user_id is required")
	}
	if req.Description == "" {
		return nil, errors.New("description is required")
	}
	if !validEmergencyTypes[req.EmergencyType] {
		return nil, errors.New("emergency_type must be one of medical, fire, police, general")
	}

	suspended, until, err := s.guard.CheckSuspension(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if suspended {
		return nil, &guard.DeniedError{
			Reason:         guard.DeniedSuspended,
			SuspendedUntil: until,
		}
	}

	allowed, err := s.guard.CheckRateLimit(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, &guard.DeniedError{
			Reason:     guard.DeniedRateLimited,
			RetryAfter: s.policy.RateLimitWindow,
		}
	}

	location := guard.Location{Lat: req.Location.Lat, Lng: req.Location.Lng}

	verdict, err := s.guard.VerifyEmergency(ctx, req.UserID, location, req.Description)
	if err != nil {
		return nil, err
	}

	// every attempt is recorded, accepted or not
	if err := s.guard.RecordAttempt(ctx, req.UserID, location, verdict.Verified); err != nil {
		return nil, err
	}

	result := &TriggerResult{
		Verified:   verdict.Verified,
		Confidence: verdict.Confidence,
		Warnings:   verdict.Warnings,
	}

	if !verdict.Verified {
		s.logger.Warnw("Emergency not verified, no dispatch",
			"user_id", req.UserID,
			"confidence", verdict.Confidence,
		)
		return result, nil
	}

	p, err := s.profiles.Load(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	messages := s.composer.Compose(p, req.EmergencyType, req.Description, s.now())

	if err := s.queue.Enqueue(ctx, messages); err != nil {
		return nil, err
	}
	result.MessagesQueued = len(messages)

	if err := s.worker.Flush(ctx, req.UserID); err != nil {
		s.logger.Errorw("Immediate flush failed, sweep will retry",
			"user_id", req.UserID,
			"error", err,
		)
	}

	s.scheduler.Arm()

	s.logger.Infow("Emergency dispatched",
		"user_id", req.UserID,
		"emergency_type", req.EmergencyType,
		"messages", len(messages),
	)

	return result, nil
}

func (s *emergencyService) ReportFalseAlarm(ctx context.Context, userID string) (*guard.FalseAlarmResult, error) {

	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	return s.guard.ReportFalseAlarm(ctx, userID)
}

func (s *emergencyService) SaveProfile(ctx context.Context, req *SaveProfileRequest) error {

	if req.UserID == "" {
		return errors.New("user_id is required")
	}

	return s.profiles.Save(ctx, &profile.CachedEmergencyProfile{
		UserID:            req.UserID,
		EmergencyContacts: req.EmergencyContacts,
		MedicalInfo:       req.MedicalInfo,
		Location:          req.Location,
		CapturedAt:        s.now(),
	})
}

func (s *emergencyService) GetProfile(ctx context.Context, userID string) (*profile.CachedEmergencyProfile, error) {

	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	return s.profiles.Load(ctx, userID)
}

func (s *emergencyService) QueueStatus(ctx context.Context, userID string) (*QueueStatusResult, error) {

	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	pending, err := s.queue.Pending(ctx, userID)
	if err != nil {
		return nil, err
	}

	counts, err := s.queue.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &QueueStatusResult{
		Pending:   pending,
		Delivered: counts[dispatch.StatusDelivered],
		Failed:    counts[dispatch.StatusFailed],
	}, nil
}

func (s *emergencyService) History(ctx context.Context, userID string) (*guard.UserEmergencyHistory, error) {

	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	return s.histories.GetHistory(ctx, userID)
}

// Resume is the platform's connectivity-restored webhook.
func (s *emergencyService) Resume(ctx context.Context) error {
	return s.worker.FlushAll(ctx)
}
