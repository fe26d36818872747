// Package app holds the shared dependencies handed to HTTP handlers, the job
// worker and the scheduler.
package app

import (
	"log/slog"

	"storefront.kajin.shop/internal/appconf"
	"storefront.kajin.shop/internal/config"
	"storefront.kajin.shop/shopdb"
)

// Application bundles the configuration, logger and storage client every
// component depends on.
type Application struct {
	Config config.Config
	Env    appconf.Environment
	Logger *slog.Logger
	Store  *shopdb.Client
}
