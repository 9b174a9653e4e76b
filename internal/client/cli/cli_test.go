package cli

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listkeeper/listsync/internal/client"
	"github.com/listkeeper/listsync/internal/client/storage"
)

// fakeIO накапливает вывод и отдает заготовленные ответы на prompts
type fakeIO struct {
	output   []string
	input    string
	password string
}

func (f *fakeIO) Println(a ...any) {
	f.output = append(f.output, fmt.Sprintln(a...))
}

func (f *fakeIO) Printf(format string, a ...any) {
	f.output = append(f.output, fmt.Sprintf(format, a...))
}

func (f *fakeIO) ReadInput(string) (string, error)    { return f.input, nil }
func (f *fakeIO) ReadPassword(string) (string, error) { return f.password, nil }

func (f *fakeIO) joined() string {
	var out string
	for _, s := range f.output {
		out += s
	}
	return out
}

// memIdentity - in-memory IdentityStorage для тестов команд
type memIdentity struct {
	identity *storage.Identity
}

func (m *memIdentity) SaveIdentity(_ context.Context, identity *storage.Identity) error {
	cp := *identity
	m.identity = &cp
	return nil
}

func (m *memIdentity) GetIdentity(_ context.Context) (*storage.Identity, error) {
	if m.identity == nil {
		return nil, storage.ErrIdentityNotFound
	}
	cp := *m.identity
	return &cp, nil
}

func (m *memIdentity) DeleteIdentity(_ context.Context) error {
	m.identity = nil
	return nil
}

func newTestCli(store *memIdentity, io *fakeIO) *Cli {
	c := client.New("http://127.0.0.1:1", store, nil, slog.New(slog.DiscardHandler))
	return New(c, store, io)
}

func TestRunPairRequiresDeviceName(t *testing.T) {
	c := newTestCli(&memIdentity{}, &fakeIO{})

	err := c.RunPair(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")

	err = c.RunPair(context.Background(), []string{"  "})
	require.Error(t, err)
}

func TestRunPairRejectsEmptyCode(t *testing.T) {
	c := newTestCli(&memIdentity{}, &fakeIO{password: "  "})

	err := c.RunPair(context.Background(), []string{"laptop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection code cannot be empty")
}

func TestRunPairRefusesWhenAlreadyPaired(t *testing.T) {
	store := &memIdentity{identity: &storage.Identity{ClientID: "c1", DeviceName: "old"}}
	c := newTestCli(store, &fakeIO{password: "482913"})

	err := c.RunPair(context.Background(), []string{"laptop"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already paired")
}

func TestRunUnpair(t *testing.T) {
	store := &memIdentity{identity: &storage.Identity{ClientID: "c1"}}
	io := &fakeIO{}
	c := newTestCli(store, io)

	require.NoError(t, c.RunUnpair(context.Background()))
	assert.Nil(t, store.identity)
	assert.Contains(t, io.joined(), "removed")

	// Повторный unpair не ошибка
	require.NoError(t, c.RunUnpair(context.Background()))
	assert.Contains(t, io.joined(), "not paired")
}

func TestRunStatusNotPaired(t *testing.T) {
	io := &fakeIO{}
	c := newTestCli(&memIdentity{}, io)

	require.NoError(t, c.RunStatus(context.Background()))
	assert.Contains(t, io.joined(), "not paired")
}

func TestRunStatusPairedUnreachableRelay(t *testing.T) {
	store := &memIdentity{identity: &storage.Identity{
		ClientID:   "c1",
		DeviceName: "laptop",
		ServerName: "home",
		ServerURL:  "http://127.0.0.1:1",
		PairedAt:   time.Now(),
	}}
	io := &fakeIO{}
	c := newTestCli(store, io)

	require.NoError(t, c.RunStatus(context.Background()))
	out := io.joined()
	assert.Contains(t, out, "paired")
	assert.Contains(t, out, "laptop")
	assert.Contains(t, out, "unreachable")
}
