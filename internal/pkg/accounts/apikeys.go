package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/app/models"
	"github.com/assistdesk/assistdesk/internal/pkg/apperr"
	"github.com/assistdesk/assistdesk/internal/pkg/usercontext"
)

// IssuedKey is returned once when a key is created. Secret is never stored.
type IssuedKey struct {
	Key    *models.APIKey `json:"key"`
	Secret string         `json:"secret"`
}

// IssueAPIKey creates a key for userID. Only admins may issue keys.
func (s *Service) IssueAPIKey(ctx context.Context, caller usercontext.UserContext, userID uint, name string) (*IssuedKey, error) {
	if err := caller.Require(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, apperr.Validation("name", "Key name is required (max 100 characters)")
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("get user", err)
	}
	if !u.IsActive {
		return nil, apperr.Validation("user_id", "Cannot issue keys for an inactive user")
	}

	key, raw, err := models.NewAPIKey(userID, name)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	if err := s.repo.CreateAPIKey(ctx, key); err != nil {
		return nil, apperr.FromStore("create api key", err)
	}
	log.Infof("[Accounts] API key %s issued for user %d by %d", key.Prefix, userID, caller.UserID)
	return &IssuedKey{Key: key, Secret: raw}, nil
}

// ListAPIKeys returns every key of userID, revoked ones included.
func (s *Service) ListAPIKeys(ctx context.Context, userID uint) ([]models.APIKey, error) {
	keys, err := s.repo.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore("list api keys", err)
	}
	return keys, nil
}

// RevokeAPIKey revokes keyID owned by userID.
func (s *Service) RevokeAPIKey(ctx context.Context, caller usercontext.UserContext, userID, keyID uint) error {
	if err := caller.Require(); err != nil {
		return err
	}
	n, err := s.repo.RevokeAPIKeys(ctx, userID, keyID, s.now())
	if err != nil {
		return apperr.FromStore("revoke api key", err)
	}
	if n == 0 {
		return apperr.NotFound("api key")
	}
	return nil
}

// LookupAPIKey resolves a raw key to its active owner.
func (s *Service) LookupAPIKey(ctx context.Context, raw string) (*models.User, *models.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, apperr.ErrNotAuthenticated
	}
	key, err := s.repo.FindAPIKeyByHash(ctx, models.HashAPIKey(raw))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.ErrNotAuthenticated
		}
		return nil, nil, apperr.FromStore("find api key", err)
	}
	if !key.IsActive() {
		return nil, nil, apperr.ErrNotAuthenticated
	}
	u, err := s.repo.Get(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.ErrNotAuthenticated
		}
		return nil, nil, apperr.FromStore("get user", err)
	}
	if !u.IsActive {
		return nil, nil, apperr.ErrNotAuthenticated
	}
	if err := s.repo.TouchAPIKey(ctx, key.ID, s.now()); err != nil {
		log.Warnf("[Accounts] last use of API key %d not stored: %v", key.ID, err)
	}
	return u, key, nil
}
