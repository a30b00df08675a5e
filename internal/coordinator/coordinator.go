// Package coordinator owns the fleet of generals and the driver-facing
// operations that mutate it: adding and killing generals, setting
// fault state, issuing the actual order, and reporting collective
// state. It generalizes a single fixed-topology simulation manager
// into a dynamically growable fleet addressed by sequential TCP ports.
package coordinator

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/distsys-sim/byzantine-generals/internal/events"
	"github.com/distsys-sim/byzantine-generals/internal/general"
	"github.com/distsys-sim/byzantine-generals/internal/metrics"
)

// Coordinator manages the live fleet of generals and mediates the
// command surface's driver-facing operations against them.
type Coordinator struct {
	mu         sync.Mutex
	generals   map[int]*general.General
	nextID     int
	portPrefix int
	seedBase   int64
	bus        *events.Bus
	verbose    bool
}

// New creates an empty coordinator. portPrefix is added to a general's
// sequential ID to form its listen port, per spec.md's "unique ports
// == port_prefix+id" invariant; it defaults to 5000 in the CLI.
func New(portPrefix int, seedBase int64, bus *events.Bus, verbose bool) *Coordinator {
	return &Coordinator{
		generals:   make(map[int]*general.General),
		portPrefix: portPrefix,
		seedBase:   seedBase,
		bus:        bus,
		verbose:    verbose,
	}
}

// AddGenerals brings up n new generals, the first becoming primary
// only if the fleet was previously empty. It returns the IDs created.
func (c *Coordinator) AddGenerals(n int) ([]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasEmpty := len(c.generals) == 0
	ids := make([]int, 0, n)

	for i := 0; i < n; i++ {
		id := c.nextID
		c.nextID++

		status := general.Secondary
		if wasEmpty && i == 0 {
			status = general.Primary
		}

		addr := fmt.Sprintf("127.0.0.1:%d", c.portPrefix+id)
		g, err := general.New(id, addr, status, c.seedBase+int64(id), c.bus, c.verbose)
		if err != nil {
			return ids, fmt.Errorf("coordinator: add general %d: %w", id, err)
		}

		c.generals[id] = g
		ids = append(ids, id)
	}

	metrics.LiveGenerals.Set(float64(len(c.generals)))
	return ids, nil
}

// Kill removes a general from the fleet, closing its listener. If it
// was primary, the lowest-ID remaining secondary is promoted.
func (c *Coordinator) Kill(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.generals[id]
	if !ok {
		return fmt.Errorf("coordinator: no such general %d", id)
	}

	wasPrimary := g.Status() == general.Primary
	g.Close()
	delete(c.generals, id)
	metrics.LiveGenerals.Set(float64(len(c.generals)))

	if wasPrimary {
		c.promoteLowestLocked()
	}
	return nil
}

func (c *Coordinator) promoteLowestLocked() {
	ids := c.sortedIDsLocked()
	if len(ids) == 0 {
		return
	}
	c.generals[ids[0]].SetStatus(general.Primary)
}

// SetState updates the fault state of general id.
func (c *Coordinator) SetState(id int, state general.State) error {
	c.mu.Lock()
	g, ok := c.generals[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("coordinator: no such general %d", id)
	}
	g.SetState(state)
	return nil
}

// StateReport returns the g-state display line for every general,
// ordered by ID.
func (c *Coordinator) StateReport() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.sortedIDsLocked()
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, c.generals[id].StateLine())
	}
	return lines
}

// Count returns the current fleet size.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.generals)
}

func (c *Coordinator) sortedIDsLocked() []int {
	ids := make([]int, 0, len(c.generals))
	for id := range c.generals {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (c *Coordinator) primaryLocked() (*general.General, bool) {
	for _, g := range c.generals {
		if g.Status() == general.Primary {
			return g, true
		}
	}
	return nil, false
}

// ActualOrder issues order from the current primary to the whole
// quorum (every other general), waits for every secondary's DCSN to
// reach the primary, aggregates the collective decision per the BFT
// bound, returns the verdict with the per-round summary lines, and
// clears round state. If the
// fleet is empty, it fails with "no generals" per spec.
func (c *Coordinator) ActualOrder(order general.Order, waiter func()) (string, []string, error) {
	c.mu.Lock()
	if len(c.generals) == 0 {
		c.mu.Unlock()
		return "", nil, fmt.Errorf("coordinator: no generals")
	}

	primary, ok := c.primaryLocked()
	if !ok {
		c.mu.Unlock()
		return "", nil, fmt.Errorf("coordinator: no primary general")
	}

	ids := c.sortedIDsLocked()
	quorum := make([]string, 0, len(ids)-1)
	k := 0
	for _, id := range ids {
		g := c.generals[id]
		if g.Address() != primary.Address() {
			quorum = append(quorum, g.Address())
		}
		if g.State() == general.Faulty {
			k++
		}
	}
	n := len(ids)
	c.mu.Unlock()

	primary.ClearDecisions()
	primary.SendOrder(quorum, order)

	for primary.DecisionCount() < len(quorum) {
		waiter()
	}

	decisions := primary.Decisions()
	verdict := executeOrder(decisions, n, k)
	metrics.Decisions.WithLabelValues(verdictOutcome(verdict)).Inc()

	c.mu.Lock()
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, c.generals[id].RoundSummaryLine())
	}
	for _, id := range ids {
		c.generals[id].ClearRound()
	}
	c.mu.Unlock()

	primary.ClearDecisions()
	c.emit(events.ConsensusReached, map[string]interface{}{"verdict": verdict, "n": n, "k": k})
	return verdict, lines, nil
}

func (c *Coordinator) emit(typ events.EventType, data map[string]interface{}) {
	if c.bus == nil {
		return
	}
	c.bus.Emit(typ, data)
}

// CloseAll shuts down every general, used on program exit.
func (c *Coordinator) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.generals {
		g.Close()
	}
	c.generals = make(map[int]*general.General)
	metrics.LiveGenerals.Set(0)
}

// executeOrder applies the BFT aggregation rule: with n generals and
// k of them faulty, tolerating the fault bound requires
// required = max(3, 3k+1) generals. The candidate collective decision
// is the most common majority value among the collected decisions; a
// tie between the top two counts forces "undefined". This is the
// non-recursive, single-round majority variant of the protocol — it
// does not implement OM(m>1).
func executeOrder(decisions []general.Decision, n, k int) string {
	required := 3
	if bound := 3*k + 1; bound > required {
		required = bound
	}

	counts := map[general.Majority]int{}
	for _, d := range decisions {
		counts[d.Majority]++
	}

	choice, count := topChoice(counts)

	if required > n || choice == general.MajorityUndefined {
		return fmt.Sprintf(
			"cannot be determined: not enough generals or no consistent majority (required %d, N=%d), %d faulty, %d out of %d quorum not consistent",
			required, n, k, count, n,
		)
	}

	if k > 0 {
		return fmt.Sprintf("Execute order: %s! %d faulty nodes, %d out of %d quorum suggest %s", choice, k, count, n, choice)
	}
	return fmt.Sprintf("Execute order: %s! Non-faulty nodes, %d out of %d quorum suggest %s", choice, count, n, choice)
}

// topChoice finds the majority value with the highest count, forcing
// "undefined" when the top two counts are tied.
func topChoice(counts map[general.Majority]int) (general.Majority, int) {
	type entry struct {
		majority general.Majority
		count    int
	}
	entries := make([]entry, 0, len(counts))
	for m, c := range counts {
		entries = append(entries, entry{m, c})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].count > entries[j].count })

	if len(entries) == 0 {
		return general.MajorityUndefined, 0
	}
	if len(entries) > 1 && entries[0].count == entries[1].count {
		return general.MajorityUndefined, entries[0].count
	}
	return entries[0].majority, entries[0].count
}

// verdictOutcome extracts a short metrics label (attack, retreat,
// undefined, or unresolved) from a rendered verdict message.
func verdictOutcome(verdict string) string {
	switch {
	case strings.Contains(verdict, "attack"):
		return "attack"
	case strings.Contains(verdict, "retreat"):
		return "retreat"
	case strings.Contains(verdict, "cannot be determined"):
		return "unresolved"
	default:
		return "undefined"
	}
}
