package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewValidationError("x"), http.StatusBadRequest},
		{model.NewInvalidRequestError(), http.StatusBadRequest},
		{model.NewInvalidDateRangeError(), http.StatusBadRequest},
		{model.NewInvalidPaginationError("take"), http.StatusBadRequest},
		{model.NewEmailAlreadyExistsError(), http.StatusConflict},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidTokenError(), http.StatusUnauthorized},
		{model.NewTokenBlacklistedError(), http.StatusUnauthorized},
		{model.NewRefreshTokenInvalidError(), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewTodoNotFoundError("x"), http.StatusNotFound},
		{model.NewTokenNotFoundError(), http.StatusNotFound},
		{model.NewRefreshTokenNotFoundError(), http.StatusNotFound},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{&model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
			t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name        string
		expose      bool
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"ラップされたAPIError", false, fmt.Errorf("wrap: %w", model.NewForbiddenError()), http.StatusForbidden, model.ErrCodeForbidden, model.NewForbiddenError().Message},
		{"本番では内部エラーを隠す", false, errors.New("pq: connection refused"), http.StatusInternalServerError, model.ErrCodeInternal, "内部エラーが発生しました。"},
		{"開発では内部エラーを返す", true, errors.New("pq: connection refused"), http.StatusInternalServerError, model.ErrCodeInternal, "pq: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			errorResponder{exposeInternal: tt.expose}.handleServiceError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.wantCode || body.Message != tt.wantMessage {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

// decodeBody はレスポンスボディをJSONとして解析する。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode body: %v\nraw: %s", err, w.Body.String())
	}
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
