// Package client はtodoman APIのGoクライアントを提供する。
// 認証情報（セッションCookie）はCookie Jarに保持し、呼び出し側には公開しない。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "todoman-client/1.0"

	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

// ErrUnauthenticated はサーバーが401を返したことを示す。
// 呼び出し側はサインインからやり直す。
var ErrUnauthenticated = errors.New("client: unauthenticated")

// APIError は401以外のエラーレスポンスを表す。
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// User はログインユーザーを表す。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Task はタスクを表す。
type Task struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskList はタスク一覧のレスポンス。
type TaskList struct {
	Tasks []Task `json:"tasks"`
	Empty bool   `json:"empty"`
}

// AuthStatus は認証状態を表す。
type AuthStatus struct {
	IsAuthenticated bool  `json:"isAuthenticated"`
	User            *User `json:"user"`
}

// Client はtodoman APIのクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTransport はHTTPトランスポートを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithLogger はロガーを設定する。
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New はbaseURLのサーバーに接続するClientを生成する。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ベースURLのスキームが不正です: %q", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("Cookie Jarの作成に失敗しました: %w", err)
	}

	c := &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: defaultTimeout,
		},
		baseURL: u,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SignIn はOAuthフロー（/auth/google から始まるリダイレクト）を最後まで辿り、
// 認証済みになったかを確認する。IdPが対話なしで認可コードを返す環境で使う。
func (c *Client) SignIn(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/auth/google"), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("サインインに失敗しました: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if errCode := resp.Request.URL.Query().Get("error"); errCode != "" {
		c.logger.Warn("sign-in redirected with error", slog.String("error", errCode))
		return nil, ErrUnauthenticated
	}

	status, err := c.CheckAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !status.IsAuthenticated {
		return nil, ErrUnauthenticated
	}
	return status.User, nil
}

// CheckAuth は現在の認証状態を返す。未認証でもエラーにはならない。
func (c *Client) CheckAuth(ctx context.Context) (*AuthStatus, error) {
	var status AuthStatus
	if err := c.do(ctx, http.MethodGet, "/auth/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Logout はサーバー側のセッションを破棄する。
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ListTasks は未完了タスク一覧を返す。
func (c *Client) ListTasks(ctx context.Context) (*TaskList, error) {
	var list TaskList
	if err := c.do(ctx, http.MethodGet, "/", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListCompleted は完了済みタスク一覧を返す。
func (c *Client) ListCompleted(ctx context.Context) (*TaskList, error) {
	var list TaskList
	if err := c.do(ctx, http.MethodGet, "/completed", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

type mutationResponse struct {
	Message string `json:"message"`
	Task    *Task  `json:"task"`
}

// Add はタスクを作成する。
func (c *Client) Add(ctx context.Context, title, content string) (*Task, error) {
	var resp mutationResponse
	body := map[string]string{"title": title, "content": content}
	if err := c.do(ctx, http.MethodPost, "/add", body, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// MarkDone はタスクを完了済みにする。
func (c *Client) MarkDone(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/done", map[string]string{"id": id}, nil)
}

// Edit はタスクのタイトルと本文を更新する。
func (c *Client) Edit(ctx context.Context, id, title, content string) (*Task, error) {
	var resp mutationResponse
	body := map[string]string{"id": id, "title": title, "content": content}
	if err := c.do(ctx, http.MethodPatch, "/edit", body, &resp); err != nil {
		return nil, err
	}
	return resp.Task, nil
}

// Delete はタスクを削除する。
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/completed/delete", map[string]string{"id": id}, nil)
}

// CurrentUser はログインユーザーの情報を返す。
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// do はリクエストを送信し、2xxならレスポンスをoutにデコードする。
// 状態変更メソッドにはCSRFトークンを付与する。
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		token, err := c.csrfToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set(csrfHeaderName, token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s の呼び出しに失敗しました: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			c.logger.Debug("failed to decode error response", slog.String("error", decodeErr.Error()))
		}
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
	}
	return nil
}

// csrfToken はJarにあるCSRFトークンを返す。なければ/csrf-tokenから取得する。
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == csrfCookieName && ck.Value != "" {
			return ck.Value, nil
		}
	}

	var resp struct {
		Token string `json:"token"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/csrf-token"), nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("CSRFトークンの取得に失敗しました: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("CSRFトークンの取得でステータス %d が返されました", httpResp.StatusCode)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("CSRFトークンのデコードに失敗しました: %w", err)
	}
	return resp.Token, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}
