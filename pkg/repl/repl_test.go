package repl

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRepl(t *testing.T) *REPL {
	t.Helper()
	r := NewRepl()
	require.NoError(t, r.AddCommand("echo", func(payload string, _ *REPLConfig) (string, error) {
		return strings.TrimPrefix(payload, "echo "), nil
	}, "Echo the payload. usage: echo <text>"))
	return r
}

func TestAddCommandRejectsHelpTrigger(t *testing.T) {
	r := NewRepl()
	err := r.AddCommand(TriggerHelpMetacommand, nil, "")
	assert.ErrorIs(t, err, ErrReservedTrigger)
	assert.Empty(t, r.GetCommands())
}

func TestCombineRepls(t *testing.T) {
	combined, err := CombineRepls(nil)
	require.NoError(t, err)
	assert.Empty(t, combined.GetCommands())

	other := NewRepl()
	require.NoError(t, other.AddCommand("ping", func(string, *REPLConfig) (string, error) {
		return "pong", nil
	}, "Ping. usage: ping"))
	combined, err = CombineRepls([]*REPL{echoRepl(t), other})
	require.NoError(t, err)
	assert.Len(t, combined.GetCommands(), 2)
	assert.Equal(t, "echo: Echo the payload. usage: echo <text>\nping: Ping. usage: ping\n", combined.HelpString())

	_, err = CombineRepls([]*REPL{echoRepl(t), echoRepl(t)})
	assert.ErrorIs(t, err, ErrOverlappingCommands)
}

func TestRun(t *testing.T) {
	r := echoRepl(t)
	require.NoError(t, r.AddCommand("whoami", func(_ string, c *REPLConfig) (string, error) {
		return c.ClientID().String(), nil
	}, "Print the client id. usage: whoami"))

	id := uuid.New()
	var out strings.Builder
	r.Run(id, "> ", strings.NewReader("echo hi\n\nnope\nwhoami\n.help\n"), &out)

	got := out.String()
	assert.Contains(t, got, "> hi\n> ")
	assert.Contains(t, got, ErrorPrependStr+ErrCommandNotFound.Error())
	assert.Contains(t, got, id.String()+"\n")
	assert.Contains(t, got, "whoami: Print the client id.")
	assert.True(t, strings.HasSuffix(got, "> \n"))
}
