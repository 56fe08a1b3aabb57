package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultStateTTL はOAuth stateトークンの有効期間。
const DefaultStateTTL = 10 * time.Minute

// ErrInvalidState はstateトークンの署名・有効期限・nonceのいずれかが不正な場合に返される。
var ErrInvalidState = errors.New("invalid oauth state")

// stateClaims はstateトークンのクレーム。nonceはjtiに格納する。
type stateClaims struct {
	jwt.RegisteredClaims
}

// StateSigner はOAuth stateをHS256で署名・検証する。
// 同じnonceをoauth_state Cookieにも保存し、コールバック時に両者を突き合わせる。
type StateSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateSigner はStateSignerを生成する。ttlが0以下の場合はDefaultStateTTLを使用する。
func NewStateSigner(secret string, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue は新しいstateトークンとnonceを返す。
func (s *StateSigner) Issue() (token string, nonce string, err error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	nonce = hex.EncodeToString(b)

	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	token, err = t.SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign state: %w", err)
	}
	return token, nonce, nil
}

// Verify はstateトークンを検証し、埋め込まれたnonceがCookieのnonceと一致するか確認する。
func (s *StateSigner) Verify(token, nonce string) error {
	if token == "" || nonce == "" {
		return ErrInvalidState
	}

	claims := &stateClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidState
	}

	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(nonce)) != 1 {
		return ErrInvalidState
	}
	return nil
}
