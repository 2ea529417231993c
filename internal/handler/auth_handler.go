// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/todoman/internal/auth"
	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

const (
	// AuthTokenCookieName はアクセストークンを保持するCookieの名前。
	AuthTokenCookieName = "auth_token"
	// RefreshTokenCookieName はリフレッシュトークンを保持するCookieの名前。
	RefreshTokenCookieName = "refresh_token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, name string) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	Logout(ctx context.Context, in auth.LogoutInput) error
	CurrentUser(ctx context.Context, bearer string, session *model.Session) (*model.User, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// CookieSigner はCookie値に署名する。
type CookieSigner interface {
	Sign(value string) string
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain        string
	CookieSecure        bool
	TokenCookieMaxAge   int // auth_token Cookieの有効期間（秒）
	RefreshCookieMaxAge int // refresh_token Cookieの有効期間（秒）。リフレッシュトークン自体の有効期間より短い
	ExposeInternal      bool
}

// AuthHandler はAPIの認証関連のHTTPハンドラー。
type AuthHandler struct {
	errorResponder
	service AuthServiceInterface
	signer  CookieSigner
	config  AuthHandlerConfig
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, signer CookieSigner, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		errorResponder: errorResponder{exposeInternal: config.ExposeInternal},
		service:        service,
		signer:         signer,
		config:         config,
		now:            time.Now,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type registerResponse struct {
	User         userResponse `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register はユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, result)
	writeJSON(w, http.StatusCreated, registerResponse{
		User:         toUserResponse(result.User),
		Token:        result.Token,
		RefreshToken: result.RefreshToken,
	})
}

// Login はログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.setAuthCookies(w, result)
	writeJSON(w, http.StatusOK, tokenResponse{Token: result.Token})
}

// Logout はセッションを破棄し、トークンを失効させ、Cookieを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	in := auth.LogoutInput{
		AuthToken:    cookieValue(r, AuthTokenCookieName),
		BearerToken:  middleware.BearerToken(r),
		RefreshToken: cookieValue(r, RefreshTokenCookieName),
	}
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		in.SessionID = session.ID
	}

	if err := h.service.Logout(r.Context(), in); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.clearCookie(w, AuthTokenCookieName)
	h.clearCookie(w, RefreshTokenCookieName)
	h.clearCookie(w, middleware.SessionCookieName)
	writeJSON(w, http.StatusOK, messageResponse{Message: "ログアウトしました。"})
}

// Current は認証済みユーザーを返す。Bearerトークンを優先し、なければセッションを使う。
// GET /api/auth/current
func (h *AuthHandler) Current(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.CurrentUser(r.Context(), middleware.BearerToken(r), middleware.SessionFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Refresh はrefresh_token Cookieから新しいアクセストークンを発行する。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.service.Refresh(r.Context(), cookieValue(r, RefreshTokenCookieName))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.setCookie(w, AuthTokenCookieName, token, h.config.TokenCookieMaxAge)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// setAuthCookies はトークンとセッションのCookieを設定する。
func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, result *auth.Result) {
	h.setCookie(w, AuthTokenCookieName, result.Token, h.config.TokenCookieMaxAge)
	h.setCookie(w, RefreshTokenCookieName, result.RefreshToken, h.config.RefreshCookieMaxAge)
	if result.Session != nil {
		h.setCookie(w, middleware.SessionCookieName, h.signer.Sign(result.Session.ID), result.Session.MaxAgeSeconds(h.now()))
	}
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	clearCookie(w, name, h.config.CookieDomain, h.config.CookieSecure)
}

// clearCookie はMaxAge=-1でCookieを削除する。
func clearCookie(w http.ResponseWriter, name, domain string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
