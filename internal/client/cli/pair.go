package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/listkeeper/listsync/internal/client/storage"
)

// RunPair привязывает устройство: запрашивает код подключения
// и сохраняет выданную идентичность
func (c *Cli) RunPair(ctx context.Context, args []string) error {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("usage: pair <device-name>")
	}
	deviceName := strings.TrimSpace(args[0])

	if _, err := c.store.GetIdentity(ctx); err == nil {
		return fmt.Errorf("device is already paired, run 'unpair' first")
	} else if !errors.Is(err, storage.ErrIdentityNotFound) {
		return err
	}

	// Код не должен попадать в историю команд и на экран
	code, err := c.io.ReadPassword("Connection code: ")
	if err != nil {
		return fmt.Errorf("failed to read connection code: %w", err)
	}
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("connection code cannot be empty")
	}

	identity, err := c.client.Pair(ctx, strings.TrimSpace(code), deviceName)
	if err != nil {
		return err
	}

	c.io.Printf("Paired with %q as %q (clientId %s)\n",
		identity.ServerName, identity.DeviceName, identity.ClientID)
	return nil
}

// RunUnpair удаляет сохраненную идентичность устройства
func (c *Cli) RunUnpair(ctx context.Context) error {
	if _, err := c.store.GetIdentity(ctx); err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			c.io.Println("Device is not paired")
			return nil
		}
		return err
	}

	if err := c.store.DeleteIdentity(ctx); err != nil {
		return err
	}
	c.io.Println("Device identity removed")
	return nil
}

// RunVerify проверяет сохраненную идентичность на relay
func (c *Cli) RunVerify(ctx context.Context) error {
	if err := c.client.VerifyKey(ctx); err != nil {
		return err
	}
	c.io.Println("Identity verified")
	return nil
}
