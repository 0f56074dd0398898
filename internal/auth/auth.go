// Package auth resolves bearer tokens to accounts.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ctxthelp/ctxt-api/internal/core"
)

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = 24 * time.Hour

type contextKey struct{}

var accountKey contextKey

// Authenticator validates HS256 bearer tokens and loads the account they
// name.
type Authenticator struct {
	accounts core.AccountStore
	secret   []byte
	clock    core.Clock
	logger   *zap.Logger
}

// New wires an authenticator.
func New(accounts core.AccountStore, secret string, clock core.Clock, logger *zap.Logger) *Authenticator {
	return &Authenticator{accounts: accounts, secret: []byte(secret), clock: clock, logger: logger}
}

// IssueToken mints a signed token with the account ID as subject. Used by
// tests and the session endpoint.
func (a *Authenticator) IssueToken(accountID string) (string, error) {
	now := a.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve parses the Authorization header and loads the account. A missing
// header returns (nil, nil); invalid or expired tokens and inactive
// accounts return an AuthenticationError.
func (a *Authenticator) Resolve(r *http.Request) (*core.Account, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, &core.AuthenticationError{Detail: "authorization header must use the Bearer scheme"}
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.clock.Now))
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, &core.AuthenticationError{Detail: "invalid or expired token"}
	}

	account, err := a.accounts.GetByID(r.Context(), claims.Subject)
	if err != nil {
		return nil, &core.AuthenticationError{Detail: "account not found"}
	}
	if !account.IsActive {
		return nil, &core.AuthenticationError{Detail: "account is disabled"}
	}
	return &account, nil
}

// Optional attaches the account to the request context when a valid token
// is present and rejects only malformed credentials. Anonymous requests
// pass through untouched.
func (a *Authenticator) Optional(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := a.Resolve(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			if account != nil {
				r = r.WithContext(WithAccount(r.Context(), account))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Required rejects requests without a valid account.
func (a *Authenticator) Required(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := a.Resolve(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			if account == nil {
				onError(w, r, &core.AuthenticationError{Detail: "authentication required"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

// WithAccount stores the resolved account on a context.
func WithAccount(ctx context.Context, account *core.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFrom returns the resolved account, or nil for anonymous requests.
func AccountFrom(ctx context.Context) *core.Account {
	account, _ := ctx.Value(accountKey).(*core.Account)
	return account
}
