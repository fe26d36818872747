package app

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tokens are opaque bearer credentials: a random body plus an HMAC-SHA256
// signature under the application secret. Only the SHA256 of the full token
// is persisted, in a server-side whitelist, so a leaked database does not
// leak usable credentials.

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// IssueToken mints a token for the user, whitelists it and enforces the
// per-user device cap by evicting the oldest token.
func (app *Application) IssueToken(ctx context.Context, userID int64) (string, int64, error) {
	body := make([]byte, 24)
	if _, err := rand.Read(body); err != nil {
		return "", 0, fmt.Errorf("generating token: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)
	token := encoded + "." + app.signToken(encoded)

	now := time.Now()
	expiresAt := now.AddDate(0, 0, app.Config.Auth.TokenTTLDays()).Unix()

	if _, err := app.Store.Queries.InsertToken(ctx, userID, hashToken(token), now.Unix(), expiresAt); err != nil {
		return "", 0, fmt.Errorf("storing token: %w", err)
	}

	if maxTokens := app.Config.Auth.MaxTokensPerUser; maxTokens > 0 {
		count, err := app.Store.Queries.CountTokensForUser(ctx, userID)
		if err != nil {
			return "", 0, err
		}
		for count > int64(maxTokens) {
			if err := app.Store.Queries.DeleteOldestTokenForUser(ctx, userID); err != nil {
				return "", 0, err
			}
			count--
		}
	}

	return token, expiresAt, nil
}

// AuthenticateToken resolves a presented token to its user ID.
func (app *Application) AuthenticateToken(ctx context.Context, token string) (int64, error) {
	body, sig, found := strings.Cut(token, ".")
	if !found || body == "" {
		return 0, ErrInvalidToken
	}

	// Reject forged tokens before touching the database.
	if !hmac.Equal([]byte(app.signToken(body)), []byte(sig)) {
		return 0, ErrInvalidToken
	}

	stored, err := app.Store.Queries.GetTokenByHash(ctx, hashToken(token))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, err
	}

	if stored.ExpiresAt <= time.Now().Unix() {
		_ = app.Store.Queries.DeleteToken(ctx, stored.TokenHash)
		return 0, ErrTokenExpired
	}

	return stored.UserID, nil
}

// RevokeToken removes a token from the whitelist.
func (app *Application) RevokeToken(ctx context.Context, token string) error {
	return app.Store.Queries.DeleteToken(ctx, hashToken(token))
}

func (app *Application) signToken(body string) string {
	mac := hmac.New(sha256.New, []byte(app.Config.SecretKey))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
