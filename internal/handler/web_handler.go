package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoman/internal/auth"
	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/todo"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	// defaultPageLimit は画面の一覧で1ページに表示する件数の既定値。
	defaultPageLimit = 10
	// maxPageLimit は画面の一覧で1ページに表示する件数の上限。
	maxPageLimit = 50
	// maxPage は(page-1)*limitがintに収まるページ番号の上限。
	maxPage = math.MaxInt / maxPageLimit

	// formTimeLayout はdatetime-local入力の形式。
	formTimeLayout    = "2006-01-02T15:04"
	displayTimeLayout = "2006/01/02 15:04"

	loginPath   = "/auth/login"
	myTodoPath  = "/my-todo"
	internalMsg = "内部エラーが発生しました。しばらく待ってから再度お試しください。"
)

// WebAuthServiceInterface はWeb画面の認証処理に必要なサービスインターフェース。
type WebAuthServiceInterface interface {
	WebRegister(ctx context.Context, email, password, confirmPassword, name string) (*model.Session, error)
	WebLogin(ctx context.Context, email, password string, remember bool) (*model.Session, error)
	Logout(ctx context.Context, in auth.LogoutInput) error
}

// ContentSanitizer はTODO本文を表示用の安全なHTMLに変換する。
type ContentSanitizer interface {
	Sanitize(raw string) string
}

// WebHandlerConfig はWeb画面ハンドラーの設定。
type WebHandlerConfig struct {
	CookieDomain   string
	CookieSecure   bool
	ExposeInternal bool
	Location       *time.Location // 日時入力の解釈と表示に使うタイムゾーン。nilはUTC
}

// WebHandler はサーバーレンダリング画面のHTTPハンドラー。
// 失敗時はJSONを返さず、フォームの再表示またはerrorクエリ付きのリダイレクトで通知する。
type WebHandler struct {
	auth      WebAuthServiceInterface
	todos     TodoServiceInterface
	signer    CookieSigner
	config    WebHandlerConfig
	templates map[string]*template.Template
	now       func() time.Time
}

// NewWebHandler はWebHandlerを生成する。テンプレートの解析に失敗した場合はエラーを返す。
func NewWebHandler(
	authService WebAuthServiceInterface,
	todos TodoServiceInterface,
	signer CookieSigner,
	sanitizer ContentSanitizer,
	config WebHandlerConfig,
) (*WebHandler, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	loc := config.Location

	funcs := template.FuncMap{
		"sanitize": func(s string) template.HTML {
			// サニタイザーの出力は許可リスト済みのHTML
			return template.HTML(sanitizer.Sanitize(s))
		},
		"formatTime": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.In(loc).Format(displayTimeLayout)
		},
		"inputTime": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return t.In(loc).Format(formTimeLayout)
		},
	}

	templates := make(map[string]*template.Template)
	for _, page := range []string{"login.html", "register.html", "index.html", "my_todo.html"} {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, err
		}
		templates[page] = tmpl
	}

	return &WebHandler{
		auth:      authService,
		todos:     todos,
		signer:    signer,
		config:    config,
		templates: templates,
		now:       time.Now,
	}, nil
}

// pageData はテンプレートに渡す値。
type pageData struct {
	Title      string
	CSRFToken  string
	Session    *model.Session
	Error      string
	Success    string
	Form       map[string]string
	Todos      []*model.Todo
	TotalCount int
	Page       int
	Limit      int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

// LoginPage はログイン画面を表示する。ログイン済みの場合はマイTODOへリダイレクトする。
// GET /auth/login
func (h *WebHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, myTodoPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login.html", h.newPageData(r, "ログイン"))
}

// Login はログインフォームを処理する。
// POST /auth/login
func (h *WebHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	remember := r.PostFormValue("remember") != ""

	session, err := h.auth.WebLogin(r.Context(), email, r.PostFormValue("password"), remember)
	if err != nil {
		data := h.newPageData(r, "ログイン")
		data.Form = map[string]string{"email": email}
		h.renderFormError(w, r, "login.html", data, err)
		return
	}

	h.setSessionCookie(w, session)
	http.Redirect(w, r, myTodoPath, http.StatusSeeOther)
}

// RegisterPage は登録画面を表示する。
// GET /auth/register
func (h *WebHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if middleware.SessionFromContext(r.Context()) != nil {
		http.Redirect(w, r, myTodoPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "register.html", h.newPageData(r, "新規登録"))
}

// Register は登録フォームを処理する。
// POST /auth/register
func (h *WebHandler) Register(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	name := r.PostFormValue("name")

	session, err := h.auth.WebRegister(r.Context(), email, r.PostFormValue("password"), r.PostFormValue("confirmPassword"), name)
	if err != nil {
		data := h.newPageData(r, "新規登録")
		data.Form = map[string]string{"email": email, "name": name}
		h.renderFormError(w, r, "register.html", data, err)
		return
	}

	h.setSessionCookie(w, session)
	redirectWithFlash(w, r, myTodoPath, "success", "登録が完了しました。")
}

// Logout はセッションを破棄してログイン画面へリダイレクトする。
// GET /auth/logout
func (h *WebHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var in auth.LogoutInput
	if session := middleware.SessionFromContext(r.Context()); session != nil {
		in.SessionID = session.ID
	}

	if err := h.auth.Logout(r.Context(), in); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		redirectWithFlash(w, r, myTodoPath, "error", h.errorMessage(err))
		return
	}

	clearCookie(w, middleware.SessionCookieName, h.config.CookieDomain, h.config.CookieSecure)
	redirectWithFlash(w, r, loginPath, "success", "ログアウトしました。")
}

// Index は公開済みTODOの一覧を表示する。
// GET /?page=&limit=
func (h *WebHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, "index.html", "公開TODO", true)
}

// MyTodo は自分のTODOの一覧を表示する。
// GET /my-todo?page=&limit=
func (h *WebHandler) MyTodo(w http.ResponseWriter, r *http.Request) {
	h.renderList(w, r, "my_todo.html", "マイTODO", false)
}

// CreateTodo はTODO作成フォームを処理する。
// POST /my-todo
func (h *WebHandler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	from, to, err := h.parsePeriod(r)
	if err != nil {
		redirectWithFlash(w, r, myTodoPath, "error", err.Error())
		return
	}

	_, err = h.todos.Create(r.Context(), userID, todo.CreateInput{
		Title:     r.PostFormValue("title"),
		Content:   r.PostFormValue("content"),
		IsPublish: r.PostFormValue("isPublish") != "",
		From:      from,
		To:        to,
	})
	h.redirectResult(w, r, err, "TODOを追加しました。")
}

// UpdateTodo はTODO編集フォームを処理する。フォームの全項目で上書きする。
// POST /my-todo/{id}/update
func (h *WebHandler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	from, to, err := h.parsePeriod(r)
	if err != nil {
		redirectWithFlash(w, r, myTodoPath, "error", err.Error())
		return
	}

	title := r.PostFormValue("title")
	content := r.PostFormValue("content")
	isDone := r.PostFormValue("isDone") != ""
	isPublish := r.PostFormValue("isPublish") != ""

	_, err = h.todos.Update(r.Context(), userID, chi.URLParam(r, "id"), todo.UpdateInput{
		Title:     &title,
		Content:   &content,
		IsDone:    &isDone,
		IsPublish: &isPublish,
		From:      todo.OptionalTime{Set: true, Time: from},
		To:        todo.OptionalTime{Set: true, Time: to},
	})
	h.redirectResult(w, r, err, "TODOを更新しました。")
}

// DeleteTodo はTODOを削除する。
// POST /my-todo/{id}/delete
func (h *WebHandler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	err := h.todos.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	h.redirectResult(w, r, err, "TODOを削除しました。")
}

// ToggleDone はTODOの完了状態を切り替える。
// POST /my-todo/{id}/toggle-done
func (h *WebHandler) ToggleDone(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	_, err := h.todos.ToggleDone(r.Context(), userID, chi.URLParam(r, "id"))
	h.redirectResult(w, r, err, "完了状態を変更しました。")
}

// TogglePublish はTODOの公開状態を切り替える。
// POST /my-todo/{id}/toggle-publish
func (h *WebHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	_, err := h.todos.TogglePublish(r.Context(), userID, chi.URLParam(r, "id"))
	h.redirectResult(w, r, err, "公開状態を変更しました。")
}

func (h *WebHandler) renderList(w http.ResponseWriter, r *http.Request, page, title string, publishedOnly bool) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	pageNum, limit := parsePage(r.URL.Query())

	result, err := h.todos.List(r.Context(), userID, todo.ListQuery{
		Take:          limit,
		Skip:          (pageNum - 1) * limit,
		PublishedOnly: publishedOnly,
	})

	data := h.newPageData(r, title)
	data.Page = pageNum
	data.Limit = limit
	if err != nil {
		slog.Error("failed to list todos", slog.String("error", err.Error()))
		data.Error = h.errorMessage(err)
		h.render(w, r, http.StatusInternalServerError, page, data)
		return
	}

	data.Todos = result.Todos
	data.TotalCount = result.TotalCount
	data.TotalPages = (result.TotalCount + limit - 1) / limit
	data.HasPrev = pageNum > 1
	data.HasNext = pageNum < data.TotalPages
	data.PrevPage = pageNum - 1
	data.NextPage = pageNum + 1
	h.render(w, r, http.StatusOK, page, data)
}

func (h *WebHandler) newPageData(r *http.Request, title string) *pageData {
	q := r.URL.Query()
	return &pageData{
		Title:     title,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Session:   middleware.SessionFromContext(r.Context()),
		Error:     q.Get("error"),
		Success:   q.Get("success"),
	}
}

func (h *WebHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data *pageData) {
	tmpl, ok := h.templates[page]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	var buf strings.Builder
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template",
			slog.String("page", page),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(buf.String()))
}

// renderFormError はフォームをエラーメッセージ付きで再表示する。
func (h *WebHandler) renderFormError(w http.ResponseWriter, r *http.Request, page string, data *pageData, err error) {
	status := http.StatusInternalServerError
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status = mapAPIErrorToHTTPStatus(apiErr)
	} else {
		slog.Error("web form failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	data.Error = h.errorMessage(err)
	data.Success = ""
	h.render(w, r, status, page, data)
}

// redirectResult は操作結果をフラッシュメッセージ付きでマイTODOへリダイレクトして通知する。
func (h *WebHandler) redirectResult(w http.ResponseWriter, r *http.Request, err error, success string) {
	if err != nil {
		if !model.IsAPIErrorCode(err, model.ErrCodeValidation, model.ErrCodeInvalidDateRange,
			model.ErrCodeForbidden, model.ErrCodeTodoNotFound) {
			slog.Error("todo operation failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		}
		redirectWithFlash(w, r, myTodoPath, "error", h.errorMessage(err))
		return
	}
	redirectWithFlash(w, r, myTodoPath, "success", success)
}

// errorMessage はユーザーに表示するエラーメッセージを返す。
func (h *WebHandler) errorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if h.config.ExposeInternal {
		return err.Error()
	}
	return internalMsg
}

func (h *WebHandler) setSessionCookie(w http.ResponseWriter, session *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    h.signer.Sign(session.ID),
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   session.MaxAgeSeconds(h.now()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// parsePeriod はフォームのfrom、toを解析する。空欄はnilとして扱う。
func (h *WebHandler) parsePeriod(r *http.Request) (*time.Time, *time.Time, error) {
	from, err := parseFormTime(r.PostFormValue("from"), h.config.Location)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseFormTime(r.PostFormValue("to"), h.config.Location)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseFormTime(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(formTimeLayout, raw, loc)
	if err != nil {
		return nil, errors.New("日時の形式が不正です。")
	}
	t = t.UTC()
	return &t, nil
}

// parsePage はpageとlimitを解析する。不正な値は既定値に、範囲外の値は範囲内に丸める。
func parsePage(q url.Values) (page, limit int) {
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	limit, err = strconv.Atoi(q.Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, path, key, message string) {
	http.Redirect(w, r, path+"?"+url.Values{key: {message}}.Encode(), http.StatusSeeOther)
}
