package cli

import (
	"context"
	"fmt"
	"time"
)

const syncTimeout = 2 * time.Minute

// RunSync подключается к relay и дожидается завершения раунда сверки
func (c *Cli) RunSync(ctx context.Context) error {
	conn, err := c.client.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	select {
	case <-conn.Synced():
		c.io.Println("Sync completed")
		return nil
	case <-conn.Done():
		return fmt.Errorf("session closed before sync completed")
	case <-time.After(syncTimeout):
		return fmt.Errorf("sync timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}
