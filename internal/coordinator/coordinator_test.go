package coordinator

import (
	"strings"
	"testing"
	"time"

	"github.com/distsys-sim/byzantine-generals/internal/general"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGeneralsFirstCallMakesExactlyOnePrimary(t *testing.T) {
	c := New(1700, 1, nil, false)
	defer c.CloseAll()

	ids, err := c.AddGenerals(4)
	require.NoError(t, err)
	require.Len(t, ids, 4)

	primaries := 0
	for _, line := range c.StateReport() {
		if strings.Contains(line, "primary") {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestKillingPrimaryPromotesLowestRemainingID(t *testing.T) {
	c := New(1710, 1, nil, false)
	defer c.CloseAll()

	ids, err := c.AddGenerals(3)
	require.NoError(t, err)

	require.NoError(t, c.Kill(ids[0]))

	primaries := 0
	for _, line := range c.StateReport() {
		if strings.Contains(line, "primary") {
			primaries++
		}
	}
	assert.Equal(t, 1, primaries)
	assert.Equal(t, general.Primary, c.generals[ids[1]].Status())
}

func TestUniquePortsDeriveFromPrefixPlusID(t *testing.T) {
	c := New(1720, 1, nil, false)
	defer c.CloseAll()

	ids, err := c.AddGenerals(3)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.NotEqual(t, c.generals[ids[0]].Address(), c.generals[ids[1]].Address())
	assert.Equal(t, "127.0.0.1:1721", c.generals[ids[1]].Address())
}

func TestActualOrderHonestFleetReachesUnanimousDecision(t *testing.T) {
	c := New(1730, 1, nil, false)
	defer c.CloseAll()

	_, err := c.AddGenerals(4)
	require.NoError(t, err)

	verdict, lines, err := c.ActualOrder(general.OrderAttack, func() { time.Sleep(10 * time.Millisecond) })
	require.NoError(t, err)
	assert.Contains(t, verdict, "attack")
	assert.Contains(t, verdict, "Non-faulty")
	assert.Len(t, lines, 4)

	assert.Equal(t, 0, c.generals[0].DecisionCount())
}

func TestActualOrderInsufficientGeneralsForFaultBound(t *testing.T) {
	c := New(1740, 1, nil, false)
	defer c.CloseAll()

	ids, err := c.AddGenerals(3)
	require.NoError(t, err)
	require.NoError(t, c.SetState(ids[1], general.Faulty))
	require.NoError(t, c.SetState(ids[2], general.Faulty))

	verdict, _, err := c.ActualOrder(general.OrderRetreat, func() { time.Sleep(10 * time.Millisecond) })
	require.NoError(t, err)
	assert.Contains(t, verdict, "cannot be determined")
}

