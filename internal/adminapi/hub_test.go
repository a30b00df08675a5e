package adminapi

import (
	"testing"

	"github.com/distsys-sim/byzantine-generals/internal/coordinator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchGAddReturnsFleetLines(t *testing.T) {
	coord := coordinator.New(1800, 1, nil, false)
	defer coord.CloseAll()

	c := &client{coord: coord}
	resp := c.dispatch([]byte(`{"command":"g-add","args":["2"]}`))

	require.True(t, resp.OK)
	assert.Len(t, resp.Lines, 2)
}

func TestDispatchRejectsExit(t *testing.T) {
	coord := coordinator.New(1810, 1, nil, false)
	defer coord.CloseAll()

	c := &client{coord: coord}
	resp := c.dispatch([]byte(`{"command":"exit"}`))

	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestDispatchRejectsMalformedJSON(t *testing.T) {
	coord := coordinator.New(1820, 1, nil, false)
	defer coord.CloseAll()

	c := &client{coord: coord}
	resp := c.dispatch([]byte(`not json`))

	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Error)
}

func TestDispatchUnsupportedCommandStillReturnsOK(t *testing.T) {
	coord := coordinator.New(1830, 1, nil, false)
	defer coord.CloseAll()

	c := &client{coord: coord}
	resp := c.dispatch([]byte(`{"command":"bogus"}`))

	require.True(t, resp.OK)
	require.Len(t, resp.Lines, 1)
	assert.Contains(t, resp.Lines[0], "Unsupported command")
}
