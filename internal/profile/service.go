package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrNotFound means no profile snapshot exists for the user. Dispatch treats
// this as a hard failure: composing an alert without contacts or medical
// info defeats the point of sending one.
var ErrNotFound = errors.New("emergency profile not found")

type CacheService interface {
	Save(ctx context.Context, p *CachedEmergencyProfile) error
	Load(ctx context.Context, userID string) (*CachedEmergencyProfile, error)
}

type cacheService struct {
	store  Store
	cipher Cipher
	logger *zap.SugaredLogger
}

func NewCacheService(store Store, cipher Cipher, logger *zap.SugaredLogger) CacheService {
	return &cacheService{
		store:  store,
		cipher: cipher,
		logger: logger,
	}
}

func (s *cacheService) Save(ctx context.Context, p *CachedEmergencyProfile) error {

	if p.UserID == "" {
		return errors.New("user_id is required")
	}

	if len(p.EmergencyContacts) == 0 {
		return errors.New("at least one emergency contact is required")
	}

	plaintext, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	payload, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("seal profile: %w", err)
	}

	if err := s.store.Put(ctx, p.UserID, payload, p.CapturedAt); err != nil {
		return err
	}

	s.logger.Infow("Cached emergency profile",
		"user_id", p.UserID,
		"contacts", len(p.EmergencyContacts),
	)

	return nil
}

func (s *cacheService) Load(ctx context.Context, userID string) (*CachedEmergencyProfile, error) {

	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	payload, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.cipher.Decrypt(payload)
	if err != nil {
		return nil, fmt.Errorf("unseal profile: %w", err)
	}

	var p CachedEmergencyProfile
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	return &p, nil
}
