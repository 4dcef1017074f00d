package persist

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssured/drawbot/internal/value"
)

func backendNames() []string {
	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func TestBackend_GetSet(t *testing.T) {
	ctx := context.Background()
	for _, name := range backendNames() {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, name)

			_, ok, err := b.Get(ctx, value.Key(value.S("missing")))
			require.NoError(t, err)
			assert.False(t, ok)

			keys := []string{
				value.Key(value.S("doc")),
				value.Key(value.S("doc", "child")),
				value.Key(value.S("a\x00b", "..", "_", "")),
				UUIDKey,
			}
			for i, key := range keys {
				require.NoError(t, b.Set(ctx, key, []byte{byte('0' + i)}))
			}
			for i, key := range keys {
				data, ok, err := b.Get(ctx, key)
				require.NoError(t, err)
				require.True(t, ok, "key %q", key)
				assert.Equal(t, []byte{byte('0' + i)}, data, "key %q", key)
			}

			require.NoError(t, b.Set(ctx, keys[0], []byte("replaced")))
			data, ok, err := b.Get(ctx, keys[0])
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "replaced", string(data))
		})
	}
}

func TestLoad_DecodesRecord(t *testing.T) {
	ctx := context.Background()
	b := NewMemory()
	subject := value.S("doc")

	rec, err := Load(ctx, b, subject)
	require.NoError(t, err)
	assert.Empty(t, rec)

	require.NoError(t, b.Set(ctx, value.Key(subject), []byte(`{"text":["a","hi"],"ref":["b",[0,["other"]]]}`)))
	rec, err = Load(ctx, b, subject)
	require.NoError(t, err)
	assert.Equal(t, Record{
		"text": value.V("a", "hi"),
		"ref":  value.V("b", value.RefTo("other")),
	}, rec)

	tuples := rec.Tuples(subject)
	require.Len(t, tuples, 2)
	assert.Equal(t, "ref", tuples[0].Prop)
	assert.Equal(t, "text", tuples[1].Prop)

	require.NoError(t, b.Set(ctx, value.Key(subject), []byte(`not json`)))
	_, err = Load(ctx, b, subject)
	assert.Error(t, err)
}

func TestRecord_Merge(t *testing.T) {
	rec := Record{}
	assert.True(t, rec.Merge("p", value.V("b", "x"), 0.0001))
	assert.False(t, rec.Merge("p", value.V("a", "newer text, older state"), 0.0001))
	assert.False(t, rec.Merge("p", value.V("b", "x"), 0.0001))
	assert.True(t, rec.Merge("p", value.V("b", "y"), 0.0001))
	assert.False(t, rec.Merge("p", value.V("b", "x"), 0.0001))
	assert.Equal(t, value.V("b", "y"), rec["p"])
}

func TestFiles_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := OpenFiles(dir)
	require.NoError(t, err)

	require.NoError(t, b.Set(ctx, value.Key(value.S("doc", "a b")), []byte("{}")))
	require.NoError(t, b.Set(ctx, value.Key(value.S("..", "_x", "data.json")), []byte("{}")))
	require.NoError(t, b.Set(ctx, UUIDKey, []byte("id")))

	assert.FileExists(t, filepath.Join(dir, "doc", "a%20b", "data.json"))
	assert.FileExists(t, filepath.Join(dir, "%2E%2E", "%5Fx", "data%2Ejson", "data.json"))
	assert.FileExists(t, filepath.Join(dir, "_", "UUID-KEY", "data.json"))

	entries, err := os.ReadDir(filepath.Join(dir, "doc", "a%20b"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are renamed away")
}

func TestSQLite_Pragmas(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "drawbot.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "drawbot.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	data, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", string(data))
}
