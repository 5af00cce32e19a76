package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// APIKey grants machine access to the admin API on behalf of a user.
// Only the SHA-256 hash of the secret is stored.
type APIKey struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	Name         string     `gorm:"type:varchar(100);not null;default:''" json:"name"`
	Prefix       string     `gorm:"type:varchar(20);not null;default:''" json:"prefix"`
	Hash         string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastUsedAt   *time.Time `gorm:"type:timestamp;default:null" json:"last_used_at"`
	RevokedAt    *time.Time `gorm:"type:timestamp;default:null" json:"revoked_at"`
	// RequestCount lags behind by up to one counter flush interval.
	RequestCount int64      `gorm:"not null;default:0" json:"request_count"`
}

func (APIKey) TableName() string { return "api_keys" }

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "adk_"

// NewAPIKey generates key material for userID and returns the record and the raw secret.
// The raw secret is shown once and never persisted.
func NewAPIKey(userID uint, name string) (*APIKey, string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return nil, "", err
	}
	return &APIKey{
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Prefix:    prefix,
		Hash:      hash,
		CreatedAt: time.Now(),
	}, rawKey, nil
}

// IsActive reports whether the key can still be used.
func (k *APIKey) IsActive() bool {
	return k != nil && k.Hash != "" && k.RevokedAt == nil
}

// Revoke marks the key unusable without deleting the record.
func (k *APIKey) Revoke() {
	now := time.Now()
	k.RevokedAt = &now
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	rawKey := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	return rawKey, rawKey[:16], HashAPIKey(rawKey), nil
}
