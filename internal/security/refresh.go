package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateRefreshToken はユーザーID、メールアドレス、発行時刻、乱数から
// 推測困難なリフレッシュトークン文字列を生成する。
func GenerateRefreshToken(userID, email string, now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%d-%x", userID, email, now.UnixNano(), nonce)))
	return hex.EncodeToString(sum[:]), nil
}

// GenerateSessionID はセッションIDとして使うランダムな文字列を生成する。
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
