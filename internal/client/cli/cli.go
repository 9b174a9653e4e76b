// Package cli реализует команды клиента listsync
package cli

import (
	"fmt"
	"os"

	"github.com/listkeeper/listsync/internal/client"
	"github.com/listkeeper/listsync/internal/client/iocli"
	"github.com/listkeeper/listsync/internal/client/storage"
)

// Cli связывает команды с клиентом relay и локальным хранилищем
type Cli struct {
	client *client.Client
	store  storage.IdentityStorage
	io     iocli.IO
}

// New создает CLI
func New(c *client.Client, store storage.IdentityStorage, io iocli.IO) *Cli {
	return &Cli{
		client: c,
		store:  store,
		io:     io,
	}
}

// PrintUsage печатает справку по командам
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `Usage: listsync-client [flags] <command>

Commands:
  pair <device-name>   pair this device with the relay (prompts for the connection code)
  unpair               forget the stored device identity
  verify               check the stored identity against the relay
  sync                 connect and run a sync round
  status               show pairing status and relay info
`)
}
