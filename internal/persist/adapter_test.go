package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssured/drawbot/internal/graph"
	"github.com/ssured/drawbot/internal/testutil"
	"github.com/ssured/drawbot/internal/value"
)

func stored(t *testing.T, b Backend, subject value.Subject) Record {
	t.Helper()
	rec, err := Load(context.Background(), b, subject)
	require.NoError(t, err)
	return rec
}

func TestAdapter_RoundTrip(t *testing.T) {
	for _, name := range backendNames() {
		t.Run(name, func(t *testing.T) {
			b := backendFactories[name](t)
			subject := value.S("doc")

			g1 := graph.New(graph.WithClock(testutil.NewSequenceClock("a")))
			a1 := NewAdapter(g1, b)
			h := g1.Observe(subject)
			require.NoError(t, g1.Set(subject, "text", "hello"))
			require.NoError(t, g1.SetRef(subject, "link", value.S("other")))
			h.Release()

			require.NoError(t, a1.Disconnect())

			g2 := graph.New(graph.WithClock(testutil.NewSequenceClock("b")))
			a2 := NewAdapter(g2, b)
			defer a2.Close()

			h2 := g2.Observe(subject)
			defer h2.Release()
			assert.Eventually(t, func() bool {
				got, ok := g2.Get(subject, "text")
				return ok && got == value.V("a", "hello")
			}, 2*time.Second, 5*time.Millisecond)
			got, ok := g2.Get(subject, "link")
			require.True(t, ok)
			assert.Equal(t, value.V("a", value.RefTo("other")), got)
		})
	}
}

func TestAdapter_LoadsAlreadyObserved(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	subject := value.S("doc")
	require.NoError(t, b.Set(ctx, value.Key(subject), []byte(`{"text":["a","stored"]}`)))

	g := graph.New(graph.WithClock(testutil.NewSequenceClock("b")))
	h := g.Observe(subject)
	defer h.Release()

	a := NewAdapter(g, b)
	defer a.Close()

	assert.Eventually(t, func() bool {
		got, ok := g.Get(subject, "text")
		return ok && got.Entry == "stored"
	}, time.Second, 5*time.Millisecond)
}

func TestAdapter_KeepsNewerStoredState(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	subject := value.S("doc")
	require.NoError(t, b.Set(ctx, value.Key(subject), []byte(`{"text":["m","newer"]}`)))

	g := graph.New(graph.WithClock(testutil.NewSequenceClock("c")))
	t.Cleanup(func() { _ = g.Close() })
	a := NewAdapter(g, b)

	g.Feed(value.ChangeTuple{Subject: subject, Prop: "other", Value: value.V("c", 1)})
	h := g.Observe(subject)
	require.NoError(t, g.Set(subject, "text", "older"))
	require.NoError(t, g.Set(subject, "extra", "new prop"))
	h.Release()
	require.NoError(t, a.Close())

	rec := stored(t, b, subject)
	assert.Equal(t, value.V("m", "newer"), rec["text"])
	assert.Equal(t, value.V("c", "new prop"), rec["extra"])
	assert.NotContains(t, rec, "other", "unobserved feed is dropped by the graph")
}

func TestAdapter_Filter(t *testing.T) {
	b := NewMemory()
	g := graph.New(graph.WithClock(testutil.NewSequenceClock("a")))
	a := NewAdapter(g, b, WithFilter(graph.ExcludeRoots("tmp")))

	for _, subject := range []value.Subject{value.S("tmp", "x"), value.S("doc")} {
		h := g.Observe(subject)
		require.NoError(t, g.Set(subject, "p", "v"))
		h.Release()
	}
	require.NoError(t, a.Close())

	assert.Empty(t, stored(t, b, value.S("tmp", "x")))
	assert.Len(t, stored(t, b, value.S("doc")), 1)
}

func TestAdapter_ManyWritesCoalesce(t *testing.T) {
	b := NewMemory()
	clock := testutil.NewSequenceClock("a0")
	g := graph.New(graph.WithClock(clock))
	a := NewAdapter(g, b)

	subject := value.S("counter")
	h := g.Observe(subject)
	for i := 0; i < 50; i++ {
		clock.Set("a" + string(rune('A'+i)))
		require.NoError(t, g.Set(subject, "n", float64(i)))
	}
	h.Release()
	require.NoError(t, a.Close())

	rec := stored(t, b, subject)
	assert.Equal(t, value.V("a"+string(rune('A'+49)), float64(49)), rec["n"])
}

type failingBackend struct {
	*Memory
}

func (failingBackend) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestAdapter_CloseReportsWriteErrors(t *testing.T) {
	g := graph.New(graph.WithClock(testutil.NewSequenceClock("a")))
	a := NewAdapter(g, failingBackend{NewMemory()})

	subject := value.S("doc")
	h := g.Observe(subject)
	require.NoError(t, g.Set(subject, "p", "v"))
	h.Release()

	err := a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, a.Close(), "second close is a no-op")
}

func TestAdapter_UUID(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	g := graph.New()

	a := NewAdapter(g, b)
	id, isNew, err := a.UUID(ctx)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Len(t, id, 36)

	again, isNew, err := a.UUID(ctx)
	require.NoError(t, err)
	assert.True(t, isNew, "cached result keeps reporting creation")
	assert.Equal(t, id, again)
	require.NoError(t, a.Disconnect())

	a2 := NewAdapter(g, b)
	defer a2.Close()
	reopened, isNew, err := a2.UUID(ctx)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id, reopened)

	raw, ok, err := b.Get(ctx, UUIDKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, string(raw))
}
