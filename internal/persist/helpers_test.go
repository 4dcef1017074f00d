package persist

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// backendFactories opens every backend on a fresh temp dir.
var backendFactories = map[string]func(t *testing.T) Backend{
	"memory": func(t *testing.T) Backend {
		return NewMemory()
	},
	"files": func(t *testing.T) Backend {
		b, err := OpenFiles(t.TempDir())
		require.NoError(t, err)
		return b
	},
	"sqlite": func(t *testing.T) Backend {
		b, err := OpenSQLite(filepath.Join(t.TempDir(), "drawbot.db"))
		require.NoError(t, err)
		return b
	},
	"badger": func(t *testing.T) Backend {
		b, err := OpenBadger(t.TempDir(), nil)
		require.NoError(t, err)
		return b
	},
}

func openBackend(t *testing.T, name string) Backend {
	t.Helper()
	b := backendFactories[name](t)
	t.Cleanup(func() { _ = b.Close() })
	return b
}
