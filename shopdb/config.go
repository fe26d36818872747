package shopdb

import "storefront.kajin.shop/internal/appconf"

// Config holds configuration options for the Client
type Config struct {
	// DBPath is the path to the SQLite database file, or ":memory:".
	DBPath string
	Env    appconf.Environment
}

func NewConfig(dbPath string, env appconf.Environment) Config {
	return Config{
		DBPath: dbPath,
		Env:    env,
	}
}
