// Package user はユーザー情報のドメインロジックを提供する。
package user

import (
	"context"

	"github.com/hitoshi/tally/internal/model"
	"github.com/hitoshi/tally/internal/repository"
)

// Service はユーザー情報のサービス層。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// Me は認証済みユーザー自身の情報を返す。
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
