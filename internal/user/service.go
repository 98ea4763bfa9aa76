// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/later/internal/model"
	"github.com/hitoshi/later/internal/repository"
)

// CreateParams はユーザー作成の入力。
type CreateParams struct {
	Email     string
	FirstName string
	LastName  string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	now      func() time.Time
	newID    func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// Create はACTIVE状態のユーザーを登録する。
// メールアドレスが既に登録されている場合はDUPLICATE_EMAILを返す。
func (s *Service) Create(ctx context.Context, p CreateParams) (*model.User, error) {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return nil, model.NewInvalidRequestError("emailは必須です")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, model.NewInvalidRequestError("emailの形式が正しくありません")
	}

	now := s.now()
	user := &model.User{
		ID:               s.newID(),
		Email:            email,
		FirstName:        strings.TrimSpace(p.FirstName),
		LastName:         strings.TrimSpace(p.LastName),
		RegistrationDate: now,
		State:            model.UserStateActive,
		CreatedAt:        now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewDuplicateEmailError(email)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// List は登録済みユーザーを登録日時の昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}
