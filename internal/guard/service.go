package guard

import (
	"context"
	"strings"
	"time"

	"emergency-service/config"

	"go.uber.org/zap"
)

const (
	baseConfidence     = 0.5
	verifiedThreshold  = 0.6
	geofenceDelta      = 0.2
	keywordHitDelta    = 0.2
	suspiciousHitDelta = 0.5
	shortDescPenalty   = 0.2
	historyPenalty     = 0.3
	timePatternPenalty = 0.3
	timePatternWeight  = 0.1
	maxSuspensionDays  = 30
)

type GuardService interface {
	CheckRateLimit(ctx context.Context, userID string) (bool, error)
	CheckSuspension(ctx context.Context, userID string) (bool, time.Time, error)
	VerifyEmergency(ctx context.Context, userID string, location Location, description string) (*VerifyResult, error)
	RecordAttempt(ctx context.Context, userID string, location Location, verified bool) error
	ReportFalseAlarm(ctx context.Context, userID string) (*FalseAlarmResult, error)
}

type guardService struct {
	histories HistoryRepository
	policy    config.PolicyConfig
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewGuardService(histories HistoryRepository, policy config.PolicyConfig, logger *zap.SugaredLogger) GuardService {
	return &guardService{
		histories: histories,
		policy:    policy,
		logger:    logger,
		now:       time.Now,
	}
}

// CheckRateLimit reports whether the user is still under the attempt ceiling
// for the trailing window. True means the attempt may proceed.
func (s *guardService) CheckRateLimit(ctx context.Context, userID string) (bool, error) {

	history, err := s.histories.GetHistory(ctx, userID)
	if err != nil {
		return false, err
	}

	cutoff := s.now().Add(-s.policy.RateLimitWindow)

	count := 0
	for _, attempt := range history.Attempts {
		if attempt.Timestamp.After(cutoff) {
			count++
		}
	}

	return count < s.policy.RateLimitCeiling, nil
}

// CheckSuspension reports whether the user is currently suspended. An
// elapsed suspension is cleared lazily here, not by a background timer.
func (s *guardService) CheckSuspension(ctx context.Context, userID string) (bool, time.Time, error) {

	history, err := s.histories.GetHistory(ctx, userID)
	if err != nil {
		return false, time.Time{}, err
	}

	if !history.Suspended || history.SuspensionEndsAt == nil {
		return false, time.Time{}, nil
	}

	if !history.SuspensionEndsAt.After(s.now()) {
		if err := s.histories.ClearSuspension(ctx, userID); err != nil {
			return false, time.Time{}, err
		}
		s.logger.Infow("Suspension expired, cleared", "user_id", userID)
		return false, time.Time{}, nil
	}

	return true, *history.SuspensionEndsAt, nil
}

// VerifyEmergency scores the legitimacy of a triggered emergency. The score
// is a weighted heuristic rather than a model so that every denial can be
// explained and every weight tuned by policy.
func (s *guardService) VerifyEmergency(ctx context.Context, userID string, location Location, description string) (*VerifyResult, error) {

	history, err := s.histories.GetHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	confidence := baseConfidence
	warnings := []string{}

	// Geofence signal
	if s.insideServiceRegion(location) {
		confidence += geofenceDelta
	} else {
		confidence -= geofenceDelta
		warnings = append(warnings, "reported location is outside the service region")
	}

	// Keyword signal
	lower := strings.ToLower(description)
	for _, kw := range s.policy.EmergencyKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			confidence += keywordHitDelta
		}
	}
	for _, kw := range s.policy.SuspiciousKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			confidence -= suspiciousHitDelta
			warnings = append(warnings, "description contains a test/suspicious phrase")
		}
	}
	if len(description) < s.policy.MinDescriptionLen {
		confidence -= shortDescPenalty
	}

	// History signal
	if history.FalseAlarmCount > 2 {
		confidence -= historyPenalty
		warnings = append(warnings, "user has repeated false alarms on record")
	}

	// Time-pattern signal
	now := s.now()
	if s.unusualHour(now.Hour()) && s.attemptsInUnusualHours(history) > 2 {
		confidence -= timePatternPenalty * timePatternWeight
	}

	confidence = clamp01(confidence)

	result := &VerifyResult{
		Verified:   confidence > verifiedThreshold,
		Confidence: confidence,
		Warnings:   warnings,
	}

	s.logger.Infow("Verified emergency attempt",
		"user_id", userID,
		"confidence", result.Confidence,
		"verified", result.Verified,
		"warnings", len(result.Warnings),
	)

	return result, nil
}

func (s *guardService) RecordAttempt(ctx context.Context, userID string, location Location, verified bool) error {

	attempt := EmergencyAttempt{
		UserID:    userID,
		Timestamp: s.now(),
		Location:  location,
		Verified:  verified,
		Completed: false,
	}

	return s.histories.AppendAttempt(ctx, userID, attempt)
}

// ReportFalseAlarm bumps the user's penalty counter. From the third report
// the user is suspended for min(count-2, 30) days.
func (s *guardService) ReportFalseAlarm(ctx context.Context, userID string) (*FalseAlarmResult, error) {

	count, err := s.histories.IncrementFalseAlarm(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &FalseAlarmResult{FalseAlarmCount: count}

	if count >= 3 {
		days := count - 2
		if days > maxSuspensionDays {
			days = maxSuspensionDays
		}
		until := s.now().Add(time.Duration(days) * 24 * time.Hour)

		if err := s.histories.SetSuspension(ctx, userID, until); err != nil {
			return nil, err
		}

		result.Suspended = true
		result.SuspendedUntil = &until

		s.logger.Warnw("User suspended after repeated false alarms",
			"user_id", userID,
			"false_alarm_count", count,
			"until", until,
		)
	}

	return result, nil
}

func (s *guardService) insideServiceRegion(location Location) bool {
	box := s.policy.Geofence
	return location.Lat >= box.MinLat && location.Lat <= box.MaxLat &&
		location.Lng >= box.MinLng && location.Lng <= box.MaxLng
}

func (s *guardService) unusualHour(hour int) bool {
	return hour >= s.policy.UnusualHourStart && hour < s.policy.UnusualHourEnd
}

func (s *guardService) attemptsInUnusualHours(history *UserEmergencyHistory) int {
	count := 0
	for _, attempt := range history.Attempts {
		if s.unusualHour(attempt.Timestamp.Hour()) {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
