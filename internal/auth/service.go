// Package auth は登録、ログイン、ログアウト、トークン更新と、
// トークンまたはセッションからのユーザー解決を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
	"github.com/hitoshi/todoman/internal/security"
	"github.com/hitoshi/todoman/internal/token"
)

// UserDirectory は認証処理が利用するユーザーディレクトリの操作。
type UserDirectory interface {
	Create(ctx context.Context, email, password, name string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmailWithPassword(ctx context.Context, email string) (*model.User, error)
	VerifyPassword(user *model.User, password string) (bool, error)
}

// TokenService は認証処理が利用するトークン台帳の操作。
type TokenService interface {
	CreateRefreshToken(ctx context.Context, user *model.User) (*token.Pair, error)
	CreateToken(ctx context.Context, user *model.User) (string, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (*model.Token, error)
	AddTokenToBlacklist(ctx context.Context, token string) error
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	CheckIfBlacklisted(ctx context.Context, token string) (bool, error)
	Verify(raw string) (*security.AccessClaims, error)
}

// Recorder は認証イベントのメトリクス記録インターフェース。
type Recorder interface {
	RecordAuthEvent(event string, success bool)
	RecordTokenRejected(reason string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge  time.Duration // 通常のセッション有効期間
	RememberMaxAge time.Duration // 「ログインしたままにする」選択時の有効期間
}

// Result は登録またはログインの結果。
type Result struct {
	User         *model.User
	Token        string
	RefreshToken string
	Session      *model.Session
}

// LogoutInput はログアウト時に破棄、失効させる対象。空の項目は無視する。
type LogoutInput struct {
	SessionID    string
	AuthToken    string // auth_token Cookieの値
	BearerToken  string // Authorizationヘッダーの値
	RefreshToken string // refresh_token Cookieの値
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users    UserDirectory
	tokens   TokenService
	sessions repository.SessionRepository
	recorder Recorder
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	users UserDirectory,
	tokens TokenService,
	sessions repository.SessionRepository,
	recorder Recorder,
	config ServiceConfig,
) *Service {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = 24 * time.Hour
	}
	if config.RememberMaxAge <= 0 {
		config.RememberMaxAge = 30 * 24 * time.Hour
	}
	return &Service{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		recorder: recorder,
		config:   config,
		now:      time.Now,
	}
}

// Register はユーザーを作成し、トークンの組とセッションを発行する。
func (s *Service) Register(ctx context.Context, email, password, name string) (*Result, error) {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(name) == "" {
		s.recordEvent("register", false)
		return nil, model.NewValidationError("email、password、nameは必須です。")
	}

	user, err := s.users.Create(ctx, email, password, name)
	if err != nil {
		s.recordEvent("register", false)
		return nil, err
	}

	result, err := s.issue(ctx, user, s.config.SessionMaxAge)
	if err != nil {
		s.recordEvent("register", false)
		return nil, err
	}

	s.recordEvent("register", true)
	slog.Info("user registered", slog.String("user_id", user.ID))
	return result, nil
}

// Login はメールアドレスとパスワードを検証し、トークンの組とセッションを発行する。
// ユーザーが存在しない場合とパスワード不一致の場合は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		s.recordEvent("login", false)
		return nil, err
	}

	result, err := s.issue(ctx, user, s.config.SessionMaxAge)
	if err != nil {
		s.recordEvent("login", false)
		return nil, err
	}

	s.recordEvent("login", true)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return result, nil
}

// WebRegister は画面からの登録を処理する。トークンは発行せずセッションのみを作成する。
func (s *Service) WebRegister(ctx context.Context, email, password, confirmPassword, name string) (*model.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(name) == "" {
		s.recordEvent("register", false)
		return nil, model.NewValidationError("すべての項目を入力してください。")
	}
	if password != confirmPassword {
		s.recordEvent("register", false)
		return nil, model.NewValidationError("パスワードが一致しません。")
	}

	user, err := s.users.Create(ctx, email, password, name)
	if err != nil {
		s.recordEvent("register", false)
		return nil, err
	}

	session, err := s.createSession(ctx, user, s.config.SessionMaxAge)
	if err != nil {
		s.recordEvent("register", false)
		return nil, err
	}

	s.recordEvent("register", true)
	return session, nil
}

// WebLogin は画面からのログインを処理する。rememberがtrueの場合は長期セッションを作成する。
func (s *Service) WebLogin(ctx context.Context, email, password string, remember bool) (*model.Session, error) {
	user, err := s.verifyCredentials(ctx, email, password)
	if err != nil {
		s.recordEvent("login", false)
		return nil, err
	}

	maxAge := s.config.SessionMaxAge
	if remember {
		maxAge = s.config.RememberMaxAge
	}
	session, err := s.createSession(ctx, user, maxAge)
	if err != nil {
		s.recordEvent("login", false)
		return nil, err
	}

	s.recordEvent("login", true)
	return session, nil
}

// Logout はセッションを破棄し、リフレッシュトークンを失効させ、アクセストークンをブラックリストに登録する。
// セッション破棄の失敗のみエラーとして返す。トークンの失効失敗はログに記録して処理を続ける。
func (s *Service) Logout(ctx context.Context, in LogoutInput) error {
	if in.SessionID != "" {
		if err := s.sessions.DeleteByID(ctx, in.SessionID); err != nil {
			s.recordEvent("logout", false)
			return fmt.Errorf("failed to destroy session: %w", err)
		}
	}

	if in.RefreshToken != "" {
		if err := s.tokens.RevokeRefreshToken(ctx, in.RefreshToken); err != nil {
			slog.Warn("failed to revoke refresh token on logout", slog.String("error", err.Error()))
		}
	}

	for _, tok := range uniqueNonEmpty(in.AuthToken, in.BearerToken) {
		if err := s.tokens.AddTokenToBlacklist(ctx, tok); err != nil {
			slog.Warn("failed to blacklist access token on logout", slog.String("error", err.Error()))
		}
	}

	s.recordEvent("logout", true)
	return nil
}

// Authenticate はBearerトークンを検証し、対応するユーザーを返す。
// 検証順序: ブラックリスト → 署名と有効期限 → ユーザーの存在。
// いずれかに失敗した場合は401相当のエラー、ストア障害の場合はラップしたエラーを返す。
func (s *Service) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		s.recordRejected("missing")
		return nil, model.NewUnauthorizedError()
	}

	blacklisted, err := s.tokens.CheckIfBlacklisted(ctx, raw)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		s.recordRejected("blacklisted")
		slog.Warn("blacklisted token presented")
		return nil, model.NewTokenBlacklistedError()
	}

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if model.IsAPIErrorCode(err, model.ErrCodeUserNotFound) {
		s.recordRejected("unknown_user")
		return nil, model.NewUnauthorizedError()
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindSession は有効なセッションを返す。存在しないか期限切れの場合はnilを返す。
func (s *Service) FindSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return session, nil
}

// CurrentUser はBearerトークンを優先してユーザーを解決し、トークンがない場合はセッションを使う。
// Bearerトークンが指定されて検証に失敗した場合、セッションへのフォールバックは行わない。
func (s *Service) CurrentUser(ctx context.Context, bearer string, session *model.Session) (*model.User, error) {
	if bearer != "" {
		return s.Authenticate(ctx, bearer)
	}
	if session == nil {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if model.IsAPIErrorCode(err, model.ErrCodeUserNotFound) {
		return nil, model.NewUnauthorizedError()
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// リフレッシュトークン自体は更新しない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	record, err := s.tokens.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		s.recordEvent("refresh", false)
		return "", err
	}
	if record == nil || !record.IsActive(s.now()) {
		s.recordEvent("refresh", false)
		s.recordRejected("refresh_invalid")
		return "", model.NewRefreshTokenInvalidError()
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		s.recordEvent("refresh", false)
		return "", err
	}

	access, err := s.tokens.CreateToken(ctx, user)
	if err != nil {
		s.recordEvent("refresh", false)
		return "", err
	}

	s.recordEvent("refresh", true)
	return access, nil
}

// verifyCredentials はメールアドレスとパスワードを照合し、パスワードハッシュを除いたユーザーを返す。
func (s *Service) verifyCredentials(ctx context.Context, email, password string) (*model.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, model.NewValidationError("emailとpasswordは必須です。")
	}

	user, err := s.users.FindByEmailWithPassword(ctx, email)
	if model.IsAPIErrorCode(err, model.ErrCodeUserNotFound) {
		return nil, model.NewInvalidCredentialsError()
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.users.VerifyPassword(user, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Info("password mismatch", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}
	return user.WithoutPassword(), nil
}

// issue はトークンの組とセッションを発行する。
func (s *Service) issue(ctx context.Context, user *model.User, maxAge time.Duration) (*Result, error) {
	pair, err := s.tokens.CreateRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}
	session, err := s.createSession(ctx, user, maxAge)
	if err != nil {
		return nil, err
	}
	return &Result{
		User:         user,
		Token:        pair.Token,
		RefreshToken: pair.RefreshToken,
		Session:      session,
	}, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, user *model.User, maxAge time.Duration) (*model.Session, error) {
	sessionID, err := security.GenerateSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		ExpiresAt: now.Add(maxAge),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

func (s *Service) recordEvent(event string, success bool) {
	if s.recorder != nil {
		s.recorder.RecordAuthEvent(event, success)
	}
}

func (s *Service) recordRejected(reason string) {
	if s.recorder != nil {
		s.recorder.RecordTokenRejected(reason)
	}
}

// uniqueNonEmpty は空文字列と重複を除いた値を順序を保って返す。
func uniqueNonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == v {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, v)
		}
	}
	return out
}
