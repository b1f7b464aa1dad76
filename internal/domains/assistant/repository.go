package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrConfigNotFound = errors.New("assistant config not found")
)

// Config selects a provider, model and credential for one user. At most one
// config exists per user (upsert semantics).
type Config struct {
	UserID    string    `json:"userId"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	APIKey    string    `json:"apiKey"`
	Endpoint  string    `json:"endpoint,omitempty"` // optional override
	UpdatedAt time.Time `json:"updatedAt"`
}

// RunRecord is the write-once audit trail of one completed orchestration.
type RunRecord struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversationId"`
	UserID         string          `json:"userId"`
	MessageCount   int             `json:"messageCount"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Repository is the persistence contract for assistant configs and run
// records.
type Repository interface {
	// GetConfig returns the user's config or ErrConfigNotFound.
	GetConfig(ctx context.Context, userID string) (*Config, error)

	// UpsertConfig writes the user's config, replacing any existing one.
	UpsertConfig(ctx context.Context, cfg *Config) error

	// AppendRunRecord appends one audit record. Records are never read
	// back by the realtime core.
	AppendRunRecord(ctx context.Context, rec *RunRecord) error
}
