// Package service talks to the managed services of the installation:
// the runtime container, the search/index service and the deployed application.
// All surfaces are owned externally, this package only consumes them.
package service

import (
	"context"
)

// Controller is the service control surface of one managed service.
type Controller interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning(ctx context.Context) (bool, error)
}

// Deployer manages application artifacts deployed into the runtime.
type Deployer interface {
	ListDeployed(ctx context.Context) ([]string, error)
	Deploy(ctx context.Context, path string) error
	Undeploy(ctx context.Context, name string) error
}

// AdminAPI is the administrative query surface of the runtime.
type AdminAPI interface {
	// Version returns the installed application version.
	Version(ctx context.Context) (string, error)
	// PendingMigrations returns the readiness indicator of background migration work.
	PendingMigrations(ctx context.Context) (int, error)
}

// IndexAPI is the query surface of the search/index service.
type IndexAPI interface {
	// Count returns the number of documents matching the query.
	Count(ctx context.Context, query string) (int, error)
	// TriggerReindex starts a background reindex.
	TriggerReindex(ctx context.Context) error
	// IndexedCount returns the progress indicator of a running reindex.
	IndexedCount(ctx context.Context) (int, error)
}
