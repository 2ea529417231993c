// Package token はアクセストークンとリフレッシュトークンの発行、検証、失効を提供する。
//
// 発行したトークンはすべてtokensテーブルに台帳として記録する。
// 失効はstatusをfalseにするのみで、レコードは削除しない。
package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
	"github.com/hitoshi/todoman/internal/security"
)

// RefreshTokenTTL はリフレッシュトークンレコードの有効期間。
const RefreshTokenTTL = 365 * 24 * time.Hour

// Signer はアクセストークンの署名と検証のインターフェース。
type Signer interface {
	Issue(userID, email, name string) (string, *security.AccessClaims, error)
	Verify(raw string) (*security.AccessClaims, error)
}

// Recorder はトークン関連メトリクスの記録インターフェース。
type Recorder interface {
	RecordTokenIssued(tokenType string)
	RecordTokenRejected(reason string)
}

// Pair はアクセストークンとリフレッシュトークンの組。
type Pair struct {
	Token        string
	RefreshToken string
}

// Service はトークン台帳のサービス層。
type Service struct {
	repo     repository.TokenRepository
	signer   Signer
	recorder Recorder
	now      func() time.Time
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(repo repository.TokenRepository, signer Signer, recorder Recorder) *Service {
	return &Service{
		repo:     repo,
		signer:   signer,
		recorder: recorder,
		now:      time.Now,
	}
}

// CreateRefreshToken はアクセストークンとリフレッシュトークンを発行し、
// type=refresh-token、有効期間1年のレコードとして保存する。
func (s *Service) CreateRefreshToken(ctx context.Context, user *model.User) (*Pair, error) {
	access, claims, err := s.signer.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	refresh, err := security.GenerateRefreshToken(user.ID, user.Email, now)
	if err != nil {
		return nil, err
	}

	record := &model.Token{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		Token:        access,
		RefreshToken: &refresh,
		TokenID:      claims.ID,
		Status:       true,
		ExpiresAt:    now.Add(RefreshTokenTTL),
		Type:         model.TokenTypeRefresh,
		CreatedAt:    now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.recordIssued(model.TokenTypeRefresh)
	return &Pair{Token: access, RefreshToken: refresh}, nil
}

// CreateToken はアクセストークンのみを発行し、type=access-tokenのレコードとして保存する。
// レコードの有効期限はアクセストークンのexpと同じ。
func (s *Service) CreateToken(ctx context.Context, user *model.User) (string, error) {
	access, claims, err := s.signer.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		return "", err
	}

	record := &model.Token{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     access,
		TokenID:   claims.ID,
		Status:    true,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		Type:      model.TokenTypeAccess,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store access token: %w", err)
	}

	s.recordIssued(model.TokenTypeAccess)
	return access, nil
}

// FindByRefreshToken はリフレッシュトークンに一致するレコードを返す。見つからない場合はnilを返す。
func (s *Service) FindByRefreshToken(ctx context.Context, refreshToken string) (*model.Token, error) {
	if refreshToken == "" {
		return nil, nil
	}
	record, err := s.repo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return record, nil
}

// AddTokenToBlacklist はアクセストークンに一致するレコードを失効させる。
// 一致するレコードがない場合はTOKEN_NOT_FOUNDを返す。
func (s *Service) AddTokenToBlacklist(ctx context.Context, token string) error {
	if token == "" {
		return model.NewTokenNotFoundError()
	}
	found, err := s.repo.RevokeByToken(ctx, token, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}
	if !found {
		return model.NewTokenNotFoundError()
	}
	return nil
}

// RevokeRefreshToken はリフレッシュトークンに一致するレコードを失効させる。
// 一致するレコードがない場合はREFRESH_TOKEN_NOT_FOUNDを返す。
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	record, err := s.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if record == nil {
		return model.NewRefreshTokenNotFoundError()
	}
	if err := s.repo.RevokeByID(ctx, record.ID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	slog.Info("refresh token revoked",
		slog.String("user_id", record.UserID),
		slog.String("token_id", record.TokenID),
	)
	return nil
}

// CheckIfBlacklisted はトークンに一致するレコードが存在し、かつ失効済みの場合にtrueを返す。
// 台帳にないトークンはブラックリスト入りとはみなさない。
func (s *Service) CheckIfBlacklisted(ctx context.Context, token string) (bool, error) {
	record, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return record != nil && !record.Status, nil
}

// Verify はアクセストークンの署名と有効期限を検証する。
// 失敗した場合はINVALID_TOKENを返す。
func (s *Service) Verify(raw string) (*security.AccessClaims, error) {
	claims, err := s.signer.Verify(raw)
	if err != nil {
		s.recordRejected("invalid")
		return nil, model.NewInvalidTokenError()
	}
	return claims, nil
}

func (s *Service) recordIssued(t model.TokenType) {
	if s.recorder != nil {
		s.recorder.RecordTokenIssued(string(t))
	}
}

func (s *Service) recordRejected(reason string) {
	if s.recorder != nil {
		s.recorder.RecordTokenRejected(reason)
	}
}
