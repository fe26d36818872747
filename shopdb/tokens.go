package shopdb

import (
	"context"
)

// InsertToken whitelists a token hash for a user.
func (q *Queries) InsertToken(ctx context.Context, userID int64, tokenHash string, issuedAt, expiresAt int64) (Token, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO tokens (user_id, token_hash, issued_at, expires_at)
		 VALUES (?, ?, ?, ?)
		 RETURNING id, user_id, token_hash, issued_at, expires_at`,
		userID, tokenHash, issuedAt, expiresAt)
	var t Token
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt)
	return t, err
}

func (q *Queries) GetTokenByHash(ctx context.Context, tokenHash string) (Token, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, token_hash, issued_at, expires_at
		 FROM tokens WHERE token_hash = ?`, tokenHash)
	var t Token
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt)
	return t, err
}

func (q *Queries) DeleteToken(ctx context.Context, tokenHash string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM tokens WHERE token_hash = ?`, tokenHash)
	return err
}

func (q *Queries) DeleteExpiredTokens(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) CountTokensForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// DeleteOldestTokenForUser evicts the least recently issued token, used to
// enforce the per-user device cap.
func (q *Queries) DeleteOldestTokenForUser(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE id = (
			SELECT id FROM tokens WHERE user_id = ? ORDER BY issued_at, id LIMIT 1
		 )`, userID)
	return err
}
