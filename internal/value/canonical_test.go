package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"b": 1.0, "a": "x", "c": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":null}`, string(data))
}

func TestMarshalCanonical_UTF16Order(t *testing.T) {
	// U+1F600 encodes as surrogates D83D DE00 and sorts before U+FF5E in UTF-16
	data, err := MarshalCanonical(map[string]any{"～": 1.0, "😀": 2.0})
	require.NoError(t, err)
	assert.Equal(t, `{"😀":2,"～":1}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	data, err := MarshalCanonical("<a&b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a&b>"`, string(data))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	data, err := MarshalCanonical("x\u2028y")
	require.NoError(t, err)
	assert.Equal(t, "\"x\u2028y\"", string(data))

	data, err = MarshalCanonical(`x\u2028y`)
	require.NoError(t, err)
	assert.Equal(t, `"x\\u2028y"`, string(data))
}

func TestMarshalCanonical_KeepsNormalizationForms(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"
	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)
	assert.NotEqual(t, string(b), string(a))

	assert.NotZero(t, Compare(decomposed, composed, 0.0001))
	assert.Equal(t, -Compare(decomposed, composed, 0.0001), Compare(composed, decomposed, 0.0001))
	assert.False(t, EqualEntries(decomposed, composed))

	ha, err := Hash(map[string]Value{"p": V("s", decomposed)})
	require.NoError(t, err)
	hb, err := Hash(map[string]Value{"p": V("s", composed)})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	for in, want := range map[float64]string{
		1:      "1",
		0.5:    "0.5",
		-3.25:  "-3.25",
		1e21:   "1e+21",
		1e-7:   "1e-7",
		123456: "123456",
	} {
		data, err := MarshalCanonical(in)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestMarshalCanonical_Unsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestHash_MatchesReference(t *testing.T) {
	// sha256(`{"text":["a","Test"]}`)
	h, err := Hash(map[string]Value{"text": V("a", "Test")})
	require.NoError(t, err)
	assert.Equal(t, "bc4eede0ef6a82a2f1f9550ed54ba2bc73a9c1fc79ef3753300ed495a08b501c", h)
}

func TestHash_Deterministic(t *testing.T) {
	props := map[string]Value{
		"a": V("s1", 1),
		"b": V("s2", []any{"x"}),
		"c": V("s3", RefTo("y")),
	}
	first, err := Hash(props)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Hash(props)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompare_TieBreak(t *testing.T) {
	const eps = 0.0001

	assert.Equal(t, 0, Compare(1.0, 1.00001, eps))
	assert.Equal(t, 1, Compare(2.0, 1.0, eps))
	assert.Equal(t, -1, Compare(1.0, 2.0, eps))
	// outside epsilon numbers compare by their JSON text
	assert.Equal(t, -1, Compare(10.0, 9.0, eps))
	assert.Equal(t, 0, Compare("x", "x", eps))
	assert.Equal(t, 1, Compare("y", "x", eps))
	// "1" sorts after `"` in canonical JSON
	assert.Equal(t, 1, Compare(1.0, "x", eps))
	assert.Equal(t, -Compare("a", RefTo("a"), eps), Compare(RefTo("a"), "a", eps))
}
