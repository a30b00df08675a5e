// Package general implements a single Byzantine general: a TCP
// listener, a background receive loop, and the per-round voting and
// decision bookkeeping described by the reference simulator. Its
// mutex-guarded mutable-field state and lifecycle shape generalizes a
// base-node pattern to own a real socket instead of an in-process
// inbox channel.
package general

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/distsys-sim/byzantine-generals/internal/events"
	"github.com/distsys-sim/byzantine-generals/internal/metrics"
	"github.com/distsys-sim/byzantine-generals/internal/peerlink"
	"github.com/distsys-sim/byzantine-generals/internal/wire"
)

// receiveTimeout bounds each Accept on a general's listener, matching
// the 2-second polling timeout from the wire protocol design.
const receiveTimeout = 2 * time.Second

// State is a general's fault state.
type State string

const (
	NonFaulty State = "NF"
	Faulty    State = "F"
)

// Status is a general's role in the fleet.
type Status string

const (
	Primary   Status = "primary"
	Secondary Status = "secondary"
)

// Order is an operator-issued order, or Unset before one has arrived.
type Order string

const (
	OrderAttack  Order = "attack"
	OrderRetreat Order = "retreat"
	OrderUnset   Order = ""
)

// Majority is a locally computed (or collective) voting outcome.
type Majority string

const (
	MajorityAttack    Majority = "attack"
	MajorityRetreat   Majority = "retreat"
	MajorityUndefined Majority = "undefined"
	MajorityUnset     Majority = ""
)

// Decision is one entry in the primary's decisions list: a secondary's
// reported local majority for the active round.
type Decision struct {
	SenderAddress string
	Majority      Majority
}

// round holds the working state of an active voting round.
type round struct {
	pendingVotes int
	attack       int
	retreat      int
	primary      string
}

// General is one node in the fleet.
type General struct {
	id      int
	address string

	mu       sync.Mutex
	state    State
	status   Status
	order    Order
	majority Majority
	round    *round

	decisionsMu sync.Mutex
	decisions   []Decision

	rngMu sync.Mutex
	rng   *rand.Rand

	listener net.Listener
	closeCh  chan struct{}
	wg       sync.WaitGroup
	closed   bool

	bus     *events.Bus
	verbose bool
}

// New binds a listener at address and starts the general's background
// receive loop. seed fixes the general's faulty-vote PRNG so scenarios
// with randomness are reproducible (spec.md §8).
func New(id int, address string, status Status, seed int64, bus *events.Bus, verbose bool) (*General, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("general %d: listen %s: %w", id, address, err)
	}

	g := &General{
		id:       id,
		address:  address,
		state:    NonFaulty,
		status:   status,
		order:    OrderUnset,
		majority: MajorityUnset,
		rng:      rand.New(rand.NewSource(seed)),
		listener: ln,
		closeCh:  make(chan struct{}),
		bus:      bus,
		verbose:  verbose,
	}

	g.wg.Add(1)
	go g.receiveLoop()

	return g, nil
}

// ID returns the general's stable identifier.
func (g *General) ID() int { return g.id }

// Address returns the general's listen address.
func (g *General) Address() string { return g.address }

// Status returns primary or secondary.
func (g *General) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// SetStatus is used by the coordinator to promote a secondary to
// primary after the previous primary is killed.
func (g *General) SetStatus(s Status) {
	g.mu.Lock()
	g.status = s
	g.mu.Unlock()
}

// State returns the general's current fault state.
func (g *General) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SetState updates the fault state. It has no network effect.
func (g *General) SetState(s State) {
	g.mu.Lock()
	old := g.state
	g.state = s
	g.mu.Unlock()

	if old != s {
		g.emit(events.NodeStateChanged, map[string]interface{}{
			"general": g.id, "from": string(old), "to": string(s),
		})
	}
}

// ClearRound resets an active round to absent, used by the coordinator
// once actual-order has collected every decision.
func (g *General) ClearRound() {
	g.mu.Lock()
	g.round = nil
	g.mu.Unlock()
}

// ClearDecisions empties the primary's pending decisions list.
func (g *General) ClearDecisions() {
	g.decisionsMu.Lock()
	g.decisions = nil
	g.decisionsMu.Unlock()
}

// DecisionCount reports how many DCSN messages the primary has
// collected for the active round.
func (g *General) DecisionCount() int {
	g.decisionsMu.Lock()
	defer g.decisionsMu.Unlock()
	return len(g.decisions)
}

// Decisions returns a snapshot of the primary's collected decisions.
func (g *General) Decisions() []Decision {
	g.decisionsMu.Lock()
	defer g.decisionsMu.Unlock()
	out := make([]Decision, len(g.decisions))
	copy(out, g.decisions)
	return out
}

// SendOrder is invoked by the coordinator on the primary: it records
// the order, broadcasts ORDR to every quorum address, then casts its
// own vote to the quorum exactly as cast_vote does for a secondary.
func (g *General) SendOrder(quorum []string, order Order) {
	g.mu.Lock()
	g.order = order
	g.mu.Unlock()

	for _, dest := range quorum {
		ok := peerlink.Transmit(dest, wire.IntentOrder, wire.OrderMsg{
			Primary: g.address,
			Order:   string(order),
			Quorum:  quorum,
		})
		if !ok {
			g.emit(events.MessageDropped, map[string]interface{}{
				"from": g.address, "to": dest, "intent": string(wire.IntentOrder), "reason": "transmit_failed",
			})
		} else {
			g.emit(events.MessageSent, map[string]interface{}{
				"from": g.address, "to": dest, "intent": string(wire.IntentOrder),
			})
		}
	}

	g.castVote(g.address, quorum)
}

// StateLine renders the stable "G<id>, <status>, state=<F|NF>,
// <round-descriptor-or-None>" display line.
func (g *General) StateLine() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("G%d, %s, state=%s, %s", g.id, g.status, g.state, roundDescriptor(g.round))
}

// RoundSummaryLine renders the "G<id>, <status>, majority=<...>,
// state=<F|NF>" per-round summary line printed after actual-order.
func (g *General) RoundSummaryLine() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	maj := "None"
	if g.majority != MajorityUnset {
		maj = string(g.majority)
	}
	return fmt.Sprintf("G%d, %s, majority=%s, state=%s", g.id, g.status, maj, g.state)
}

func roundDescriptor(r *round) string {
	if r == nil {
		return "None"
	}
	return fmt.Sprintf("round={pending=%d attack=%d retreat=%d}", r.pendingVotes, r.attack, r.retreat)
}

// Close shuts the listener down and waits for the receive loop to
// exit. In-flight transmits either complete or fail silently.
func (g *General) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	close(g.closeCh)
	g.listener.Close()
	g.wg.Wait()
}

// receiveLoop is the general's single cooperative background loop: it
// blocks on receive() up to the listener timeout and dispatches
// whatever it decodes, polling again on "no message".
func (g *General) receiveLoop() {
	defer g.wg.Done()

	for {
		select {
		case <-g.closeCh:
			return
		default:
		}

		peerAddr, frame, ok := peerlink.Receive(g.listener, receiveTimeout)
		if !ok {
			continue
		}
		g.handleFrame(peerAddr, frame)
	}
}

func (g *General) handleFrame(peerAddr string, f wire.Frame) {
	g.emit(events.MessageReceived, map[string]interface{}{
		"general": g.id, "from": peerAddr, "intent": string(f.Intent),
	})

	switch f.Intent {
	case wire.IntentOrder:
		g.handleOrder(f)
	case wire.IntentVote:
		g.handleVote(f)
	case wire.IntentDecision:
		g.handleDecision(f)
	default:
		g.logf("general %d: unknown intent %q from %s", g.id, f.Intent, peerAddr)
	}
}

func (g *General) handleOrder(f wire.Frame) {
	msg, ok := f.DecodeOrder()
	if !ok {
		g.logf("general %d: malformed ORDR payload", g.id)
		return
	}

	g.mu.Lock()
	g.order = Order(msg.Order)
	g.mu.Unlock()

	g.castVote(msg.Primary, msg.Quorum)
}

func (g *General) handleVote(f wire.Frame) {
	msg, ok := f.DecodeVote()
	if !ok {
		g.logf("general %d: malformed VOTE payload", g.id)
		return
	}

	g.mu.Lock()
	if g.round == nil {
		g.mu.Unlock()
		g.logf("general %d: dropping VOTE from %s, no active round", g.id, msg.Sender)
		return
	}

	if g.round.pendingVotes > 0 {
		switch Order(msg.Vote) {
		case OrderAttack:
			g.round.attack++
		case OrderRetreat:
			g.round.retreat++
		}
		g.round.pendingVotes--
	}

	var (
		emitDecision bool
		primaryAddr  string
		maj          Majority
	)
	if g.round.pendingVotes == 0 {
		switch {
		case g.round.attack > g.round.retreat:
			maj = MajorityAttack
		case g.round.retreat > g.round.attack:
			maj = MajorityRetreat
		default:
			maj = MajorityUndefined
		}
		primaryAddr = g.round.primary
		g.majority = maj
		g.round = nil
		emitDecision = true
	}
	g.mu.Unlock()

	if emitDecision {
		metrics.RoundsCompleted.Inc()
		g.emit(events.VoteCast, map[string]interface{}{
			"general": g.id, "majority": string(maj),
		})
		peerlink.Transmit(primaryAddr, wire.IntentDecision, wire.DecisionMsg{
			Sender:   g.address,
			Majority: string(maj),
		})
	}
}

func (g *General) handleDecision(f wire.Frame) {
	msg, ok := f.DecodeDecision()
	if !ok {
		g.logf("general %d: malformed DCSN payload", g.id)
		return
	}

	g.decisionsMu.Lock()
	g.decisions = append(g.decisions, Decision{SenderAddress: msg.Sender, Majority: Majority(msg.Majority)})
	g.decisionsMu.Unlock()
}

// castVote initializes the round if none is active, then transmits a
// VOTE to every quorum member except self — each recipient gets an
// independently drawn vote when the general is faulty.
func (g *General) castVote(primary string, quorum []string) {
	g.mu.Lock()
	if g.round == nil {
		g.initRoundLocked(primary, quorum)
	}
	myAddr := g.address
	g.mu.Unlock()

	for _, dest := range quorum {
		if dest == myAddr {
			continue
		}
		vote := g.getVote()
		peerlink.Transmit(dest, wire.IntentVote, wire.VoteMsg{Sender: myAddr, Vote: string(vote)})
	}
}

// initRoundLocked must be called with g.mu held. It seeds round state
// and pre-counts the general's own vote, using a draw independent of
// the ones used when transmitting votes to peers.
func (g *General) initRoundLocked(primary string, quorum []string) {
	g.round = &round{pendingVotes: len(quorum), primary: primary}

	switch g.getVoteLocked() {
	case OrderAttack:
		g.round.attack++
	case OrderRetreat:
		g.round.retreat++
	}
	g.round.pendingVotes--
}

// getVote returns this general's vote: a fresh random draw when
// faulty, its received order otherwise.
func (g *General) getVote() Order {
	g.mu.Lock()
	state, order := g.state, g.order
	g.mu.Unlock()
	return g.drawVote(state, order)
}

// getVoteLocked is getVote for callers already holding g.mu.
func (g *General) getVoteLocked() Order {
	return g.drawVote(g.state, g.order)
}

func (g *General) drawVote(state State, order Order) Order {
	if state != Faulty {
		return order
	}

	g.rngMu.Lock()
	pick := g.rng.Float64()
	g.rngMu.Unlock()

	if pick < 0.5 {
		return OrderAttack
	}
	return OrderRetreat
}

func (g *General) emit(typ events.EventType, data map[string]interface{}) {
	if g.bus == nil {
		return
	}
	g.bus.Emit(typ, data)
}

func (g *General) logf(format string, args ...interface{}) {
	if !g.verbose {
		return
	}
	g.emit(events.MessageDropped, map[string]interface{}{"note": fmt.Sprintf(format, args...)})
}
