package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/parleychat/parley/internal/domains/user"
	"gorm.io/gorm"
)

type GormUserRepo struct {
	db *gorm.DB
}

// NewGormUserRepo creates a GORM-backed user repository
func NewGormUserRepo(db *gorm.DB) user.UserRepository {
	return &GormUserRepo{db: db}
}

// Create implements user.UserRepository
func (g *GormUserRepo) Create(u *user.User) error {
	entity := NewUserEntityFromDomain(u)
	if err := g.db.Create(entity).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	*u = *entity.ToDomain()
	return nil
}

// GetByID implements user.UserRepository
func (g *GormUserRepo) GetByID(id string) (*user.User, error) {
	var entity UserEntity
	if err := g.db.Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return entity.ToDomain(), nil
}

// GetByEmail implements user.UserRepository
func (g *GormUserRepo) GetByEmail(email string) (*user.User, error) {
	var entity UserEntity
	if err := g.db.Where("email = ?", email).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return entity.ToDomain(), nil
}

// EmailExists implements user.UserRepository
func (g *GormUserRepo) EmailExists(email string) (bool, error) {
	var count int64
	if err := g.db.Model(&UserEntity{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

// UpdateLastSeen implements user.UserRepository
func (g *GormUserRepo) UpdateLastSeen(id string) error {
	result := g.db.Model(&UserEntity{}).Where("id = ?", id).Update("last_seen_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to update last seen: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrUserNotFound
	}
	return nil
}
