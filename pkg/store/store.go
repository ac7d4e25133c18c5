package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for database operations. Only the demo
// catalog is persisted; visitor state lives in the page URL.
type Store interface {
	// Lifecycle.
	Start(ctx context.Context) error
	Stop() error
	Ping(ctx context.Context) error

	// Demos.
	UpsertDemo(ctx context.Context, demo *Demo) error
	GetDemo(ctx context.Context, value string) (*Demo, error)
	ListDemos(ctx context.Context) ([]*Demo, error)
	DeleteDemo(ctx context.Context, value string) error
	// DeleteDemosNotIn removes config-sourced demos whose value is not listed.
	DeleteDemosNotIn(ctx context.Context, values []string) (int64, error)

	// Migrations.
	Migrate(ctx context.Context) error
}

// Demo is an entry of the source picker.
type Demo struct {
	Value     string    `json:"value" example:"openapi-3-1.yaml"`
	Label     string    `json:"label" example:"Petstore OpenAPI 3.1"`
	Position  int       `json:"position" example:"0"`
	InConfig  bool      `json:"in_config" example:"true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
