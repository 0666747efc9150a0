package commands

import (
	"context"
	"fmt"

	"github.com/pgweave/pgweave/runtime/client"
)

// connect opens a pgx pool for the resolved database URL and verifies
// the connection before handing it to a command.
func connect(ctx context.Context) (*client.PgxClient, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database URL configured: set DATABASE_URL or pass --database-url")
	}
	c, err := client.OpenPgx(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("cannot reach database: %w", err)
	}
	return c, nil
}
