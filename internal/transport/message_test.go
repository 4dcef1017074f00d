package transport

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssured/drawbot/internal/value"
)

func wireMessages() []Message {
	prev := value.V("a", "old")
	return []Message{
		TupleMessage(value.ChangeTuple{Subject: value.S("x"), Prop: "n", Value: value.V("s1", 1)}),
		TupleMessage(value.ChangeTuple{Subject: value.S("doc", "a"), Prop: "ref", Value: value.V("b", value.RefTo("doc")), Prev: &prev}),
		TupleMessage(value.ChangeTuple{Subject: value.S("doc"), Prop: "points", Value: value.V("c", []any{1, "two", nil})}),
		TupleMessage(value.ChangeTuple{Subject: value.S("doc"), Prop: "meta", Value: value.V("d", map[string]any{"b": true, "a": nil})}),
		ObservedMessage(value.S("x"), true),
		ObservedMessage(value.S("x", "y"), false),
	}
}

func TestMessage_WireFormat(t *testing.T) {
	var buf bytes.Buffer
	for _, msg := range wireMessages() {
		data, err := json.Marshal(msg)
		require.NoError(t, err)
		buf.Write(data)
		buf.WriteByte('\n')
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "messages", buf.Bytes())
}

func TestMessage_DecodeWireFormat(t *testing.T) {
	want := wireMessages()
	lines := bytes.Split(bytes.TrimSpace(mustRead(t, "testdata/messages.golden")), []byte("\n"))
	require.Len(t, lines, len(want))

	for i, line := range lines {
		var got Message
		require.NoError(t, json.Unmarshal(line, &got), string(line))
		assert.Equal(t, want[i].String(), got.String())
	}
}

func TestMessage_DecodeErrors(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"subject":["x"]}`,
		`{"observed":true}`,
		`{"tuple":[["x"],"n"]}`,
		`{"tuple":[["x"],"n",["a",[7,1]]]}`,
		`[1,2]`,
	} {
		var msg Message
		assert.Error(t, json.Unmarshal([]byte(raw), &msg), raw)
	}
}

func TestSeenSet_EvictsOldest(t *testing.T) {
	s := newSeenSet(3)
	tuple := func(state string) value.ChangeTuple {
		return value.ChangeTuple{Subject: value.S("x"), Prop: "p", Value: value.V(state, 1)}
	}

	for _, state := range []string{"a", "b", "c", "d"} {
		s.add(tuple(state))
	}

	assert.Equal(t, 3, s.len())
	assert.False(t, s.has(tuple("a")))
	assert.True(t, s.has(tuple("b")))
	assert.True(t, s.has(tuple("d")))

	// prev is not part of the fingerprint
	prev := value.V("a", 0)
	withPrev := tuple("d")
	withPrev.Prev = &prev
	assert.True(t, s.has(withPrev))
}
