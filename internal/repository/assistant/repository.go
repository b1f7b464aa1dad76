package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/parleychat/parley/internal/domains/assistant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormAssistantRepo struct {
	db *gorm.DB
}

// NewGormAssistantRepo creates a GORM-backed assistant repository
func NewGormAssistantRepo(db *gorm.DB) assistant.Repository {
	return &GormAssistantRepo{db: db}
}

// GetConfig implements assistant.Repository
func (g *GormAssistantRepo) GetConfig(ctx context.Context, userID string) (*assistant.Config, error) {
	var entity AIConfigEntity
	if err := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, assistant.ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to get assistant config: %w", err)
	}
	return entity.ToDomain(), nil
}

// UpsertConfig implements assistant.Repository
func (g *GormAssistantRepo) UpsertConfig(ctx context.Context, cfg *assistant.Config) error {
	entity := &AIConfigEntity{}
	entity.FromDomain(cfg)

	err := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"provider", "model", "api_key", "endpoint", "updated_at"}),
		}).
		Create(entity).Error
	if err != nil {
		return fmt.Errorf("failed to upsert assistant config: %w", err)
	}

	*cfg = *entity.ToDomain()
	return nil
}

// AppendRunRecord implements assistant.Repository
func (g *GormAssistantRepo) AppendRunRecord(ctx context.Context, rec *assistant.RunRecord) error {
	entity := &AIRunRecordEntity{
		ConversationID: rec.ConversationID,
		UserID:         rec.UserID,
		MessageCount:   rec.MessageCount,
		Payload:        rec.Payload,
		CreatedAt:      rec.CreatedAt,
	}
	if err := g.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to append run record: %w", err)
	}
	rec.ID = entity.ID
	return nil
}
