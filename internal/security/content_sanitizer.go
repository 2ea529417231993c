// Package security はアプリケーションのセキュリティ機能を提供する。
//
// パスワードハッシュ、JWTの発行と検証、リフレッシュトークン生成、
// セッションCookieの署名、TODO本文のHTMLサニタイズを扱う。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はTODO本文を画面表示用の安全なHTMLに変換するインターフェース。
// 保存される本文は変換しない。変換は表示時のみ行う。
type ContentSanitizerService interface {
	// Sanitize は許可タグ（p, br, a, ul, ol, li, blockquote, pre, code, strong, em）のみを残す。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が付与される。
	// 本文中の改行は<br>に変換される。
	Sanitize(raw string) string
}

type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで除去される
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize はTODO本文をサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	return s.policy.Sanitize(strings.ReplaceAll(normalized, "\n", "<br>"))
}
