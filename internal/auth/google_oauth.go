package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/hitoshi/todoman/internal/model"
)

const (
	// GoogleIssuer はGoogleが発行するIDトークンのiss。
	GoogleIssuer = "https://accounts.google.com"
	// GoogleJWKSURL はGoogleのIDトークン署名鍵の公開エンドポイント。
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// IDTokenVerifier はIDトークンの署名・iss・aud・有効期限を検証する。
// *oidc.IDTokenVerifier が満たす。
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// Verifier が設定されている場合、トークンレスポンスのid_tokenを検証して
	// プロフィールを取得する。nilの場合はuserinfoエンドポイントを使用する。
	Verifier IDTokenVerifier

	// HTTPClient はトークン交換とuserinfo取得に使用するクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// NewGoogleIDTokenVerifier はGoogleのJWKSで署名を検証するIDトークン検証器を生成する。
// 鍵は初回検証時に取得されるため、起動時にネットワークアクセスは発生しない。
func NewGoogleIDTokenVerifier(ctx context.Context, clientID string) *oidc.IDTokenVerifier {
	keySet := oidc.NewRemoteKeySet(ctx, GoogleJWKSURL)
	return oidc.NewVerifier(GoogleIssuer, keySet, &oidc.Config{ClientID: clientID})
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認証を提供する。
type GoogleOAuthProvider struct {
	oauth2      *oauth2.Config
	userInfoURL string
	verifier    IDTokenVerifier
	httpClient  *http.Client
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	endpoint := google.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	userInfoURL := config.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultGoogleUserInfoURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GoogleOAuthProvider{
		oauth2: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		userInfoURL: userInfoURL,
		verifier:    config.Verifier,
		httpClient:  httpClient,
	}
}

// GetLoginURL はGoogle OAuthの認証URLを生成する。
// オフラインアクセスを要求し、毎回アカウント選択画面を表示する。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	return p.oauth2.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// googleClaims はIDトークンおよびuserinfoレスポンスのうち利用するフィールド。
type googleClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	var claims *googleClaims
	rawIDToken, _ := token.Extra("id_token").(string)
	if p.verifier != nil && rawIDToken != "" {
		claims, err = p.verifyIDToken(ctx, rawIDToken)
		if err != nil {
			return nil, err
		}
	} else {
		claims, err = p.fetchUserInfo(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch user info: %w", err)
		}
	}

	return &OAuthUserInfo{
		ProviderUserID: claims.Sub,
		Email:          claims.Email,
		Name:           claims.Name,
		Provider:       model.ProviderGoogle,
	}, nil
}

// verifyIDToken はIDトークンを検証し、クレームを取り出す。
func (p *GoogleOAuthProvider) verifyIDToken(ctx context.Context, rawIDToken string) (*googleClaims, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token claims: %w", err)
	}
	if claims.Sub == "" {
		claims.Sub = idToken.Subject
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("empty sub in id token")
	}

	return &claims, nil
}

// fetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleClaims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}

	resp, err := p.oauth2.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var claims googleClaims
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	if claims.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}

	return &claims, nil
}

// compile-time interface check
var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
