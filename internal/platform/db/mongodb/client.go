package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/ogurasousui/ogs-worktime/internal/platform/config"
)

// Client は MongoDB クライアントと利用するデータベースをまとめます。
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect は MongoDB に接続し疎通確認を行います。
func Connect(ctx context.Context, cfg config.AuditLogConfig) (*Client, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("ogs-worktime")
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	pingCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}

	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

// Collection はコレクションを返します。
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// Close は接続を切断します。
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
