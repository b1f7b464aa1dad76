package assistant

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/parleychat/parley/internal/domains/assistant"
	"gorm.io/gorm"
)

// AIConfigEntity represents one user's assistant configuration
type AIConfigEntity struct {
	UserID    string    `gorm:"primaryKey;type:char(36);not null"`
	Provider  string    `gorm:"type:varchar(64);not null"`
	Model     string    `gorm:"type:varchar(128);not null"`
	APIKey    string    `gorm:"column:api_key;type:varchar(512);not null"`
	Endpoint  string    `gorm:"type:varchar(512)"`
	CreatedAt time.Time `gorm:"autoCreateTime(3)"`
	UpdatedAt time.Time `gorm:"autoUpdateTime(3)"`
}

func (AIConfigEntity) TableName() string {
	return "ai_configs"
}

// ToDomain converts AIConfigEntity to a domain Config
func (e *AIConfigEntity) ToDomain() *assistant.Config {
	return &assistant.Config{
		UserID:    e.UserID,
		Provider:  e.Provider,
		Model:     e.Model,
		APIKey:    e.APIKey,
		Endpoint:  e.Endpoint,
		UpdatedAt: e.UpdatedAt,
	}
}

// FromDomain converts a domain Config to AIConfigEntity
func (e *AIConfigEntity) FromDomain(cfg *assistant.Config) {
	e.UserID = cfg.UserID
	e.Provider = cfg.Provider
	e.Model = cfg.Model
	e.APIKey = cfg.APIKey
	e.Endpoint = cfg.Endpoint
}

// AIRunRecordEntity is the append-only audit row for one orchestration
type AIRunRecordEntity struct {
	ID             string          `gorm:"primaryKey;type:char(36);not null"`
	ConversationID string          `gorm:"type:char(36);not null;index"`
	UserID         string          `gorm:"type:char(36);not null"`
	MessageCount   int             `gorm:"not null"`
	Payload        json.RawMessage `gorm:"type:json"`
	CreatedAt      time.Time       `gorm:"autoCreateTime(3)"`
}

func (AIRunRecordEntity) TableName() string {
	return "ai_run_records"
}

func (e *AIRunRecordEntity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
