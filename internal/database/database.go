// Package database owns the process-wide MongoDB client.
package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fueltrackr/fueltrackr-api/internal/config"
)

// ErrNotConnected is returned by operations on a Client that was closed or never connected.
var ErrNotConnected = errors.New("database client is not connected")

// Client wraps a MongoDB client bound to the application database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect prepares a client for cfg.URI. The driver connects lazily, so an
// unreachable server is not reported here; use Ping for that.
func Connect(ctx context.Context, cfg config.Database) (*Client, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(cfg.Name),
	}, nil
}

// Ping runs the "ping" admin command against the application database.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.db == nil {
		return ErrNotConnected
	}
	return c.db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

// Database returns the handle that route groups use for their collections.
func (c *Client) Database() *mongo.Database {
	if c == nil {
		return nil
	}
	return c.db
}

// Disconnect closes all pooled connections.
func (c *Client) Disconnect(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrNotConnected
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect from mongodb: %w", err)
	}
	return nil
}
