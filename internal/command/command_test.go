package command

import (
	"bytes"
	"strings"
	"testing"

	"github.com/distsys-sim/byzantine-generals/internal/coordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newREPL(t *testing.T, portPrefix int) (*REPL, *bytes.Buffer, *coordinator.Coordinator) {
	t.Helper()
	c := coordinator.New(portPrefix, 1, nil, false)
	t.Cleanup(c.CloseAll)
	var buf bytes.Buffer
	return NewREPL(c, &buf), &buf, c
}

func TestUnsupportedCommandIsReported(t *testing.T) {
	r, buf, _ := newREPL(t, 1800)
	exit := r.Execute("frobnicate")
	assert.False(t, exit)
	assert.Contains(t, buf.String(), "Unsupported command")
}

func TestTooManyArgumentsIsReported(t *testing.T) {
	r, buf, _ := newREPL(t, 1810)
	exit := r.Execute("g-add 1 2 3")
	assert.False(t, exit)
	assert.Contains(t, buf.String(), "Too many arguments")
}

func TestGAddThenGStateListsFleet(t *testing.T) {
	r, buf, _ := newREPL(t, 1820)
	require.False(t, r.Execute("g-add 3"))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))

	buf.Reset()
	require.False(t, r.Execute("g-state"))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestGStateUnknownIDReportsNotFound(t *testing.T) {
	r, buf, _ := newREPL(t, 1830)
	r.Execute("g-state 99 FAULTY")
	assert.Contains(t, buf.String(), "not found")
}

func TestExitReturnsTrueAndClosesFleet(t *testing.T) {
	r, _, c := newREPL(t, 1840)
	require.False(t, r.Execute("g-add 2"))
	exit := r.Execute("exit")
	assert.True(t, exit)
	assert.Equal(t, 0, c.Count())
}

func TestActualOrderWithNoGeneralsReportsError(t *testing.T) {
	r, buf, _ := newREPL(t, 1850)
	r.Execute("actual-order attack")
	assert.Contains(t, buf.String(), "no generals")
}

func TestRepeatedNonFaultySettingIsIdempotent(t *testing.T) {
	r, _, _ := newREPL(t, 1860)
	require.False(t, r.Execute("g-add 2"))

	var first, second bytes.Buffer
	r.out = &first
	r.Execute("g-state 0 NON-FAULTY")
	r.out = &second
	r.Execute("g-state 0 NON-FAULTY")

	assert.Equal(t, first.String(), second.String())
}
