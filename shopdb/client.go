// Package shopdb is the storage layer of the storefront: a SQLite database
// holding users, the product catalog, orders, payments and the delayed job
// queue.
package shopdb

import (
	"database/sql"
	"fmt"
)

// Client is the main entry point for the storage layer
type Client struct {
	config  Config
	DB      *sql.DB
	Queries *Queries
}

// NewClient opens (creating if necessary) the database described by config
func NewClient(config Config) (*Client, error) {
	db, err := createDB(config)
	if err != nil {
		return nil, fmt.Errorf("opening shop database: %w", err)
	}

	return &Client{
		config:  config,
		DB:      db,
		Queries: New(db),
	}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error.
func (c *Client) WithTx(fn func(q *Queries) error) error {
	tx, err := c.DB.Begin()
	if err != nil {
		return err
	}

	if err := fn(New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
