// Package user はユーザーディレクトリのドメインロジックを提供する。
// パスワードハッシュを含むユーザーを返すのはFindByEmailWithPasswordのみ。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// MaxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const MaxPasswordBytes = 72

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) (bool, error)
}

// SessionDeleter はユーザー単位のセッション一括削除インターフェース。
type SessionDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザーディレクトリのサービス層。
type Service struct {
	userRepo repository.UserRepository
	sessions SessionDeleter
	hasher   PasswordHasher
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// sessionsがnilの場合、削除時のセッション破棄は行わない。
func NewService(userRepo repository.UserRepository, sessions SessionDeleter, hasher PasswordHasher) *Service {
	return &Service{
		userRepo: userRepo,
		sessions: sessions,
		hasher:   hasher,
		now:      time.Now,
	}
}

// Create はユーザーを作成する。パスワードはハッシュ化して保存する。
// メールアドレスが使用済みの場合はEMAIL_ALREADY_EXISTSを返す。
func (s *Service) Create(ctx context.Context, email, password, name string) (*model.User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, model.NewValidationError("email、password、nameは必須です。")
	}
	if err := validatePasswordLength(password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailAlreadyExistsError()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		// 検索と作成の間に同じメールアドレスで登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailAlreadyExistsError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを作成しました", slog.String("user_id", u.ID))
	return u.WithoutPassword(), nil
}

// FindByID は指定IDのユーザーを返す。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.WithoutPassword(), nil
}

// FindByEmail はメールアドレスでユーザーを返す。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.FindByEmailWithPassword(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.WithoutPassword(), nil
}

// FindByEmailWithPassword はパスワードハッシュを含むユーザーを返す。
// パスワード照合の用途に限る。
func (s *Service) FindByEmailWithPassword(ctx context.Context, email string) (*model.User, error) {
	u, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// FindAll は全ユーザーを返す。
func (s *Service) FindAll(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.WithoutPassword())
	}
	return out, nil
}

// Update は指定されたフィールドのみを更新する。
// パスワードが指定された場合は再ハッシュする。
func (s *Service) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	u, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email == "" {
			return nil, model.NewValidationError("emailを空にすることはできません。")
		}
		if email != u.Email {
			other, err := s.userRepo.FindByEmail(ctx, email)
			if err != nil {
				return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
			}
			if other != nil {
				return nil, model.NewEmailAlreadyExistsError()
			}
		}
		u.Email = email
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, model.NewValidationError("nameを空にすることはできません。")
		}
		u.Name = name
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, model.NewValidationError("passwordを空にすることはできません。")
		}
		if err := validatePasswordLength(*upd.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	u.UpdatedAt = s.now().UTC()

	ok, err := s.userRepo.Update(ctx, u)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, model.NewEmailAlreadyExistsError()
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewUserNotFoundError()
	}
	return u.WithoutPassword(), nil
}

// Delete はユーザーを削除する。
// 削除順序: sessions → user（+ CASCADE: todos）。tokensは台帳として残す。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.findByID(ctx, id); err != nil {
		return err
	}

	if s.sessions != nil {
		if err := s.sessions.DeleteByUserID(ctx, id); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	ok, err := s.userRepo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	if !ok {
		return model.NewUserNotFoundError()
	}

	slog.Info("ユーザーを削除しました", slog.String("user_id", id))
	return nil
}

// VerifyPassword は平文パスワードがユーザーのハッシュと一致するかを返す。
// userはFindByEmailWithPasswordで取得したものを渡すこと。
func (s *Service) VerifyPassword(user *model.User, password string) (bool, error) {
	if user == nil || user.PasswordHash == "" {
		return false, nil
	}
	return s.hasher.Compare(user.PasswordHash, password)
}

// findByID はパスワードハッシュを含むユーザーを返す。
// UUID形式でないIDは存在しないものとして扱う。
func (s *Service) findByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewUserNotFoundError()
	}
	u, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

func validatePasswordLength(password string) error {
	if len(password) > MaxPasswordBytes {
		return model.NewValidationError(fmt.Sprintf("passwordは%dバイト以内で指定してください。", MaxPasswordBytes))
	}
	return nil
}
