package cli

import (
	"context"
	"errors"

	"github.com/listkeeper/listsync/internal/client/storage"
)

// RunStatus показывает состояние привязки и доступность relay
func (c *Cli) RunStatus(ctx context.Context) error {
	identity, err := c.store.GetIdentity(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			c.io.Println("Status: not paired")
			return nil
		}
		return err
	}

	c.io.Println("Status: paired")
	c.io.Printf("  Device:    %s\n", identity.DeviceName)
	c.io.Printf("  Client ID: %s\n", identity.ClientID)
	c.io.Printf("  Server:    %s (%s)\n", identity.ServerName, identity.ServerURL)
	c.io.Printf("  Paired at: %s\n", identity.PairedAt.Format("2006-01-02 15:04:05"))

	if err := c.client.Hello(ctx); err != nil {
		c.io.Printf("  Relay:     unreachable (%v)\n", err)
		return nil
	}
	name, err := c.client.ServerID(ctx)
	if err != nil {
		c.io.Printf("  Relay:     online, id unavailable (%v)\n", err)
		return nil
	}
	c.io.Printf("  Relay:     online (%s)\n", name)
	return nil
}
