package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL はアクセストークンの既定の有効期間。
const DefaultAccessTokenTTL = time.Hour

// ErrInvalidToken は署名、形式、有効期限のいずれかの検証に失敗したことを表す。
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims はアクセストークンのペイロード。
type AccessClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// JWTManager はHS256で署名したアクセストークンの発行と検証を行う。
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager はJWTManagerを生成する。ttlが0以下の場合はDefaultAccessTokenTTLを使用する。
func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL はアクセストークンの有効期間を返す。
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// Issue はユーザー情報を含むアクセストークンを発行する。
// 同一秒内の発行でも値が重複しないようjtiにUUIDを設定する。
func (m *JWTManager) Issue(userID, email, name string) (string, *AccessClaims, error) {
	now := m.now()
	claims := &AccessClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 検証に失敗した場合はErrInvalidTokenをラップしたエラーを返す。
func (m *JWTManager) Verify(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
