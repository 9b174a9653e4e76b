package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPair соединяет два remote напрямую: отправленное одним
// доставляется в HandleMessage другого
func newPair(t *testing.T) (*Remote, *Remote) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	var a, b *Remote
	a = New(SenderFunc(func(msg Message) error {
		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		go func() { _ = b.HandleMessage(context.Background(), raw) }()
		return nil
	}), logger)
	b = New(SenderFunc(func(msg Message) error {
		raw, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		go func() { _ = a.HandleMessage(context.Background(), raw) }()
		return nil
	}), logger)
	return a, b
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestCallRoundTrip(t *testing.T) {
	a, b := newPair(t)

	require.NoError(t, b.Register("echo", func(_ context.Context, args json.RawMessage) (any, error) {
		var s string
		if err := json.Unmarshal(args, &s); err != nil {
			return nil, err
		}
		return "echo: " + s, nil
	}))

	var reply string
	require.NoError(t, a.Call(context.Background(), "echo", "hi", &reply))
	assert.Equal(t, "echo: hi", reply)
}

func TestCallHandlerError(t *testing.T) {
	a, b := newPair(t)

	require.NoError(t, b.Register("fail", func(_ context.Context, _ json.RawMessage) (any, error) {
		return nil, fmt.Errorf("something broke")
	}))

	err := a.Call(context.Background(), "fail", nil, nil)
	require.Error(t, err)

	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "fail", re.Method)
	assert.Contains(t, re.Message, "something broke")
	assert.False(t, IsNotDefined(err))
}

func TestCallNotDefined(t *testing.T) {
	a, _ := newPair(t)

	err := a.Call(context.Background(), "no_such_method", nil, nil)
	require.Error(t, err)
	assert.True(t, IsNotDefined(err))
}

func TestCallTimeout(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	// Канал, который молча глотает сообщения: ответа не будет никогда
	r := New(SenderFunc(func(Message) error { return nil }), logger)
	r.SetTimeout(50 * time.Millisecond)

	err := r.Call(context.Background(), "void", nil, nil)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestCallContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	r := New(SenderFunc(func(Message) error { return nil }), logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Call(ctx, "void", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGroupOrdering(t *testing.T) {
	a, b := newPair(t)

	var mu sync.Mutex
	var got []int
	require.NoError(t, b.Register("step", func(_ context.Context, args json.RawMessage) (any, error) {
		var n int
		if err := json.Unmarshal(args, &n); err != nil {
			return nil, err
		}
		mu.Lock()
		got = append(got, n)
		mu.Unlock()
		return nil, nil
	}))

	// Очередь группы: следующий вызов не уходит, пока не завершился
	// предыдущий, поэтому callee видит вызовы в порядке выдачи
	// даже при конкурентных вызывающих
	g := a.Group("list")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, g.Call(context.Background(), "step", n, nil))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	assert.Len(t, got, 10)
	got = got[:0]
	mu.Unlock()

	// Последовательные вызовы приходят строго в порядке выдачи
	for i := 0; i < 5; i++ {
		require.NoError(t, g.Call(context.Background(), "step", 100+i, nil))
	}
	mu.Lock()
	assert.Equal(t, []int{100, 101, 102, 103, 104}, got)
	mu.Unlock()
}

func TestGroupEnqueueOrder(t *testing.T) {
	a, b := newPair(t)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	require.NoError(t, b.Register("step", func(_ context.Context, args json.RawMessage) (any, error) {
		var n int
		if err := json.Unmarshal(args, &n); err != nil {
			return nil, err
		}
		mu.Lock()
		got = append(got, n)
		if len(got) == 20 {
			close(done)
		}
		mu.Unlock()
		return nil, nil
	}))

	// Enqueue возвращается немедленно, но доставка сохраняет порядок
	// постановки: следующий вызов не уходит до завершения предыдущего
	g := a.Group("list")
	for i := 0; i < 20; i++ {
		g.Enqueue("step", i)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queued calls were not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestGroupsIndependent(t *testing.T) {
	a, _ := newPair(t)
	assert.NotSame(t, a.Group("list"), a.Group("dislike"))
	assert.Same(t, a.Group("list"), a.Group("list"))
}

func TestRegisterValidation(t *testing.T) {
	a, _ := newPair(t)

	h := func(_ context.Context, _ json.RawMessage) (any, error) { return nil, nil }

	require.Error(t, a.Register("", h))
	require.Error(t, a.Register("m", nil))
	require.NoError(t, a.Register("m", h))
	require.Error(t, a.Register("m", h), "повторная регистрация должна падать")
}

func TestClose(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	r := New(SenderFunc(func(Message) error { return nil }), logger)

	errc := make(chan error, 1)
	go func() {
		errc <- r.Call(context.Background(), "void", nil, nil)
	}()

	// Даем вызову встать в pending, затем закрываем
	time.Sleep(20 * time.Millisecond)
	closeErr := fmt.Errorf("session closed")
	r.Close(closeErr)

	require.ErrorIs(t, <-errc, closeErr)

	// Новые вызовы через закрытый remote падают сразу
	require.ErrorIs(t, r.Call(context.Background(), "void", nil, nil), closeErr)
}

func TestHandleMessageErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	r := New(SenderFunc(func(Message) error { return nil }), logger)

	require.Error(t, r.HandleMessage(context.Background(), []byte("not json")))
	require.Error(t, r.HandleMessage(context.Background(), []byte(`{"type":"weird"}`)))
}
