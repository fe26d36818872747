package shopdb

import (
	"context"
	"time"
)

func (q *Queries) GetSysConf(ctx context.Context, key string) (SysConf, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, conf_key, conf_value, is_public, updated_at FROM sys_confs WHERE conf_key = ?`, key)
	var c SysConf
	err := row.Scan(&c.ID, &c.ConfKey, &c.ConfValue, &c.IsPublic, &c.UpdatedAt)
	return c, err
}

func (q *Queries) UpsertSysConf(ctx context.Context, key, value string, isPublic bool) (SysConf, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO sys_confs (conf_key, conf_value, is_public, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(conf_key) DO UPDATE SET conf_value = excluded.conf_value,
			is_public = excluded.is_public, updated_at = excluded.updated_at
		 RETURNING id, conf_key, conf_value, is_public, updated_at`,
		key, value, isPublic, time.Now().Unix())
	var c SysConf
	err := row.Scan(&c.ID, &c.ConfKey, &c.ConfValue, &c.IsPublic, &c.UpdatedAt)
	return c, err
}
