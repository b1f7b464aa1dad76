package database

import (
	assistantRepo "github.com/parleychat/parley/internal/repository/assistant"
	chatRepo "github.com/parleychat/parley/internal/repository/chat"
	userRepo "github.com/parleychat/parley/internal/repository/user"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&userRepo.UserEntity{},
		&chatRepo.ConversationEntity{},
		&chatRepo.MembershipEntity{},
		&chatRepo.ChatEventEntity{},
		&assistantRepo.AIConfigEntity{},
		&assistantRepo.AIRunRecordEntity{},
	)
}
