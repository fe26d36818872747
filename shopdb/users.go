package shopdb

import (
	"context"
	"database/sql"
	"time"
)

type CreateUserParams struct {
	Username     sql.NullString
	PasswordHash sql.NullString
	PasswordSalt sql.NullString
	Nickname     sql.NullString
	Phone        sql.NullString
	Email        sql.NullString
	IsSuperuser  bool
}

func (q *Queries) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	now := time.Now().Unix()
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, password_salt, nickname, phone, email, state, is_superuser, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '1', ?, ?, ?)
		 RETURNING id, username, password_hash, password_salt, nickname, avatar, phone, email, state, is_superuser, created_at, updated_at`,
		p.Username, p.PasswordHash, p.PasswordSalt, p.Nickname, p.Phone, p.Email, p.IsSuperuser, now, now)
	return scanUser(row)
}

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, password_salt, nickname, avatar, phone, email, state, is_superuser, created_at, updated_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, password_salt, nickname, avatar, phone, email, state, is_superuser, created_at, updated_at
		 FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (q *Queries) ListUsers(ctx context.Context, limit, offset int64) ([]User, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, username, password_hash, password_salt, nickname, avatar, phone, email, state, is_superuser, created_at, updated_at
		 FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PasswordSalt, &u.Nickname, &u.Avatar,
			&u.Phone, &u.Email, &u.State, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PasswordSalt, &u.Nickname, &u.Avatar,
		&u.Phone, &u.Email, &u.State, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) InsertUserAuth(ctx context.Context, userID int64, authType string, openID, unionID sql.NullString) (UserAuth, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO user_auths (user_id, auth_type, openid, unionid, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id, user_id, auth_type, openid, unionid, created_at`,
		userID, authType, openID, unionID, time.Now().Unix())
	var a UserAuth
	err := row.Scan(&a.ID, &a.UserID, &a.AuthType, &a.OpenID, &a.UnionID, &a.CreatedAt)
	return a, err
}

func (q *Queries) GetUserAuthByOpenID(ctx context.Context, authType, openID string) (UserAuth, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, user_id, auth_type, openid, unionid, created_at
		 FROM user_auths WHERE auth_type = ? AND openid = ?`, authType, openID)
	var a UserAuth
	err := row.Scan(&a.ID, &a.UserID, &a.AuthType, &a.OpenID, &a.UnionID, &a.CreatedAt)
	return a, err
}

func (q *Queries) ListUserAuths(ctx context.Context, userID int64) ([]UserAuth, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, user_id, auth_type, openid, unionid, created_at
		 FROM user_auths WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var auths []UserAuth
	for rows.Next() {
		var a UserAuth
		if err := rows.Scan(&a.ID, &a.UserID, &a.AuthType, &a.OpenID, &a.UnionID, &a.CreatedAt); err != nil {
			return nil, err
		}
		auths = append(auths, a)
	}
	return auths, rows.Err()
}

// EnsureRole inserts the role if missing and returns it either way.
func (q *Queries) EnsureRole(ctx context.Context, name, description string, isSystem bool) (Role, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO roles (role_name, description, is_system) VALUES (?, ?, ?)
		 ON CONFLICT(role_name) DO NOTHING`, name, description, isSystem)
	if err != nil {
		return Role{}, err
	}
	row := q.db.QueryRowContext(ctx,
		`SELECT id, role_name, description, is_system FROM roles WHERE role_name = ?`, name)
	var r Role
	err = row.Scan(&r.ID, &r.RoleName, &r.Description, &r.IsSystem)
	return r, err
}

func (q *Queries) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)
		 ON CONFLICT(user_id, role_id) DO NOTHING`, userID, roleID)
	return err
}

func (q *Queries) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT r.id, r.role_name, r.description, r.is_system
		 FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ? ORDER BY r.role_name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // nolint:errcheck

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.RoleName, &r.Description, &r.IsSystem); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}
