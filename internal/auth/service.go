package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/tally/internal/model"
	"github.com/hitoshi/tally/internal/repository"
)

// Authenticator はBearerトークンからアプリケーション内のユーザーを解決するインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Service はトークン検証とユーザー解決を行う認証サービス。
// 未知のsubjectで検証に成功した場合は初回アクセスとみなし、ユーザーを自動作成する。
type Service struct {
	verifier Verifier
	users    repository.UserRepository
}

// NewService は認証サービスを生成する。
func NewService(verifier Verifier, users repository.UserRepository) *Service {
	return &Service{
		verifier: verifier,
		users:    users,
	}
}

// Authenticate はBearerトークンを検証し、対応するユーザーを返す。
// subjectに対応するユーザーが存在しない場合は自動作成する。
// 無効化済みユーザーの場合はInactiveUserを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.NewInvalidCredentialError()
	}

	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindBySubject(ctx, identity.Subject)
	if err != nil {
		return nil, err
	}

	if user == nil {
		now := time.Now()
		user, err = s.users.CreateIfAbsent(ctx, &model.User{
			ID:        uuid.New().String(),
			SubjectID: identity.Subject,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("provisioned user on first access",
			slog.String("user_id", user.ID),
		)
	}

	if !user.IsActive {
		slog.Info("rejected inactive user", slog.String("user_id", user.ID))
		return nil, model.NewInactiveUserError()
	}

	return user, nil
}

// compile-time interface check
var _ Authenticator = (*Service)(nil)
