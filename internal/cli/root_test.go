package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssured/drawbot/internal/value"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "drawbot", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, cmdName := range []string{"serve", "get", "set", "create", "dump"} {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "dump", "x"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestSetCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	setCmd, _, err := cmd.Find([]string{"set"})
	require.NoError(t, err)

	for _, name := range []string{"prop", "value", "ref", "hub", "settle"} {
		assert.NotNil(t, setCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, DefaultSettle.String(), setCmd.Flags().Lookup("settle").DefValue)
}

func TestSetRequiresValueOrRef(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"set", "doc", "--prop", "p"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value")
}

func TestParseSubject(t *testing.T) {
	tests := []struct {
		args    []string
		want    value.Subject
		wantErr bool
	}{
		{[]string{"doc"}, value.S("doc"), false},
		{[]string{"doc/a/b"}, value.S("doc", "a", "b"), false},
		{[]string{"doc", "a/b"}, value.S("doc", "a/b"), false},
		{[]string{"cafe\u0301/menu"}, value.S("caf\u00e9", "menu"), false},
		{[]string{""}, nil, true},
		{[]string{"doc//a"}, nil, true},
		{nil, nil, true},
	}
	for _, tt := range tests {
		got, err := parseSubject(tt.args)
		if tt.wantErr {
			assert.Error(t, err, "args %q", tt.args)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseEntry(t *testing.T) {
	got, err := parseEntry(`{"w": 0.5, "tags": ["a"]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"w": 0.5, "tags": []any{"a"}}, got)

	got, err = parseEntry(`12`)
	require.NoError(t, err)
	assert.Equal(t, 12.0, got)

	got, err = parseEntry(`{"cafe\u0301": ["cafe\u0301"]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"caf\u00e9": []any{"caf\u00e9"}}, got)

	_, err = parseEntry(`nope`)
	assert.Error(t, err)
	_, err = parseEntry(`1 2`)
	assert.Error(t, err)
}
