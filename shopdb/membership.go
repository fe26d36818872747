package shopdb

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func (q *Queries) GetUserVIP(ctx context.Context, userID int64) (UserVIP, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, expire_time, updated_at FROM user_vips WHERE user_id = ?`, userID)
	var v UserVIP
	err := row.Scan(&v.ID, &v.UserID, &v.ExpireTime, &v.UpdatedAt)
	return v, err
}

// ExtendUserVIP adds days to the user's membership. A lapsed or missing
// membership restarts from now.
func (q *Queries) ExtendUserVIP(ctx context.Context, userID int64, days int64) (UserVIP, error) {
	now := time.Now()

	base := now
	existing, err := q.GetUserVIP(ctx, userID)
	switch {
	case err == nil:
		if expiry := time.Unix(existing.ExpireTime, 0); expiry.After(now) {
			base = expiry
		}
	case errors.Is(err, sql.ErrNoRows):
		// First purchase.
	default:
		return UserVIP{}, err
	}

	newExpiry := base.AddDate(0, 0, int(days)).Unix()
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO user_vips (user_id, expire_time, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET expire_time = excluded.expire_time, updated_at = excluded.updated_at
		 RETURNING id, user_id, expire_time, updated_at`,
		userID, newExpiry, now.Unix())
	var v UserVIP
	err = row.Scan(&v.ID, &v.UserID, &v.ExpireTime, &v.UpdatedAt)
	return v, err
}

// GrantDesignLicense records a purchased design license. Duplicate grants for
// the same order are ignored, keeping fulfillment idempotent.
func (q *Queries) GrantDesignLicense(ctx context.Context, userID, designID, orderID int64) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO user_design_licenses (user_id, design_id, order_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, design_id, order_id) DO NOTHING`,
		userID, designID, orderID, time.Now().Unix())
	return err
}

func (q *Queries) ListDesignLicensesForUser(ctx context.Context, userID int64) ([]UserDesignLicense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, design_id, order_id, created_at
		 FROM user_design_licenses WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var licenses []UserDesignLicense
	for rows.Next() {
		var l UserDesignLicense
		if err := rows.Scan(&l.ID, &l.UserID, &l.DesignID, &l.OrderID, &l.CreatedAt); err != nil {
			return nil, err
		}
		licenses = append(licenses, l)
	}
	return licenses, rows.Err()
}
