// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/todoman/internal/auth"
	"github.com/hitoshi/todoman/internal/middleware"
	"github.com/hitoshi/todoman/internal/model"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600 // 10分
)

// サインイン画面に渡すエラー種別
const (
	signInErrorAuthFailed   = "auth_failed"
	signInErrorInvalidState = "invalid_state"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Authenticate(ctx context.Context, sessionID string) (*model.User, error)
	Logout(ctx context.Context, sessionID string) error
}

// StateSigner はOAuthのstateパラメータを発行・検証する。auth.StateSignerが満たす。
type StateSigner interface {
	Issue() (token, nonce string, err error)
	Verify(token, nonce string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontendURL   string // 末尾が"/"のフロントエンドURL
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	state   StateSigner
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, state StateSigner, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		state:   state,
		config:  config,
	}
}

// authStatusResponse は認証状態のレスポンス。
type authStatusResponse struct {
	IsAuthenticated bool          `json:"isAuthenticated"`
	User            *userResponse `json:"user"`
}

// BeginOAuth はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	token, nonce, err := h.state.Issue()
	if err != nil {
		slog.Error("failed to issue oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateに対応するnonceをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    nonce,
		Path:     "/",
		MaxAge:   oauthStateMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(token), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// 失敗時はすべてサインイン画面へリダイレクトし、エラー詳細はログにのみ残す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	var nonce string
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		nonce = c.Value
	}
	h.clearCookie(w, oauthStateCookie, "")

	if err := h.state.Verify(query.Get("state"), nonce); err != nil {
		slog.Warn("oauth state verification failed", slog.String("error", err.Error()))
		h.redirectToSignIn(w, r, signInErrorInvalidState)
		return
	}

	// 2. IdP側のエラー（同意拒否など）
	if idpErr := query.Get("error"); idpErr != "" {
		slog.Warn("oauth provider returned error", slog.String("oauth_error", idpErr))
		h.redirectToSignIn(w, r, signInErrorAuthFailed)
		return
	}

	// 3. 認可コードの取得
	code := query.Get("code")
	if code == "" {
		slog.Warn("oauth callback without authorization code")
		h.redirectToSignIn(w, r, signInErrorAuthFailed)
		return
	}

	// 4. 認証処理
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.redirectToSignIn(w, r, signInErrorAuthFailed)
		return
	}

	// 5. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("user signed in", slog.String("user_id", session.UserID))

	// 6. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.FrontendURL, http.StatusTemporaryRedirect)
}

// Status は現在の認証状態を返す。未認証でも200を返す。
// GET /auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := authStatusResponse{}

	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		user, authErr := h.service.Authenticate(r.Context(), cookie.Value)
		switch {
		case authErr == nil:
			resp.IsAuthenticated = true
			resp.User = newUserResponse(user)
		case errors.Is(authErr, auth.ErrUnauthenticated):
			// 期限切れ・不明なセッション
		default:
			slog.Error("failed to check auth status", slog.String("error", authErr.Error()))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.destroySession(w, r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully",
	})
}

// SignOut はセッションを破棄してサインイン画面へリダイレクトする。
// GET /signOut
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.destroySession(w, r)
	h.redirectToSignIn(w, r, "")
}

// destroySession はセッションをDBから削除し、Cookieをクリアする。
func (h *AuthHandler) destroySession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			// ログアウト失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}
	h.clearCookie(w, middleware.SessionCookieName, h.config.CookieDomain)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectToSignIn はサインイン画面へリダイレクトする。reasonが空でなければ?error=を付与する。
func (h *AuthHandler) redirectToSignIn(w http.ResponseWriter, r *http.Request, reason string) {
	target := h.config.FrontendURL + "signin"
	if reason != "" {
		target += "?" + url.Values{"error": {reason}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
