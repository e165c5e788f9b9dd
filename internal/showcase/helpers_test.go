package showcase

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/go-via/testbench/internal/posts"
	"github.com/go-via/testbench/via"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a log sink safe to read while the app writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context) (posts.Post, error) {
	args := m.Called(ctx)
	return args.Get(0).(posts.Post), args.Error(1)
}

var mockPost = posts.Post{
	Title:  "Mock Post",
	Body:   "This is the body of the mock post",
	Author: "Dave",
}

func newApp(t *testing.T, logs io.Writer) *via.V {
	t.Helper()
	if logs == nil {
		logs = io.Discard
	}
	v := via.New().Config(via.Options{LogOutput: logs})
	t.Cleanup(func() { _ = v.Shutdown(context.Background()) })
	return v
}

// mount composes the view into a live tab that tests drive with Trigger.
func mount(t *testing.T, v *via.V, opts Options) (*via.Context, *View) {
	t.Helper()
	var view *View
	ctx, err := v.Mount(func(c *via.Composition) {
		view = Build(c, opts)
	})
	require.NoError(t, err)
	return ctx, view
}
