package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

var errInjected = errors.New("injected ledger failure")

var (
	admin        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	feeCollector = common.HexToAddress("0x00000000000000000000000000000000000000fc")
	alice        = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carol        = common.HexToAddress("0x0000000000000000000000000000000000000003")
	stakeToken   = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

// clock is a settable wall clock injected through Options.Now.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type transfer struct {
	addr   common.Address
	amount uint64
}

// fakeLedger records transfers and can be told to fail.
type fakeLedger struct {
	mu  sync.Mutex
	in  []transfer
	out []transfer

	inErr  error
	outErr error
	// outErrAt fails the nth TransferOut (1-based) when nonzero.
	outErrAt int
	outCalls int

	// onTransferIn/onTransferOut, when set, run inside the transfer before it
	// returns. Used to simulate re-entrant callbacks from the external ledger.
	onTransferIn  func()
	onTransferOut func()
}

func (l *fakeLedger) TransferIn(_ context.Context, from common.Address, amount uint64) error {
	l.mu.Lock()
	if l.inErr != nil {
		l.mu.Unlock()
		return l.inErr
	}
	l.in = append(l.in, transfer{from, amount})
	hook := l.onTransferIn
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (l *fakeLedger) TransferOut(_ context.Context, to common.Address, amount uint64) error {
	l.mu.Lock()
	l.outCalls++
	call := l.outCalls
	hook := l.onTransferOut
	if l.outErr != nil || (l.outErrAt > 0 && call == l.outErrAt) {
		err := l.outErr
		if err == nil {
			err = errors.New("ledger rejected transfer")
		}
		l.mu.Unlock()
		return err
	}
	l.out = append(l.out, transfer{to, amount})
	l.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (l *fakeLedger) totalIn() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum uint64
	for _, t := range l.in {
		sum += t.amount
	}
	return sum
}

func (l *fakeLedger) outTo(addr common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum uint64
	for _, t := range l.out {
		if t.addr == addr {
			sum += t.amount
		}
	}
	return sum
}

// allowOnly authorizes a fixed set of admin addresses.
type allowOnly map[common.Address]bool

func (a allowOnly) IsAuthorizedAdmin(_ context.Context, caller common.Address) bool {
	return a[caller]
}

// captureSink records every emitted event.
type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *captureSink) Emit(_ context.Context, ev domain.Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *captureSink) byType(typ domain.EventType) []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, ev := range s.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	reg    *Registry
	clock  *clock
	ledger *fakeLedger
	sink   *captureSink
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledger := &fakeLedger{}
	sink := &captureSink{}

	if opts.Now == nil {
		opts.Now = clk.now
	}
	if opts.FeeRecipient == (common.Address{}) {
		opts.FeeRecipient = feeCollector
	}

	reg, err := NewRegistry(ledger, allowOnly{admin: true}, sink, slog.New(slog.DiscardHandler), opts)
	require.NoError(t, err)

	return &testEnv{reg: reg, clock: clk, ledger: ledger, sink: sink}
}

// openMarket creates a market opening one hour from now with a two-hour
// window, then advances the clock into the window.
func (e *testEnv) openMarket(t *testing.T, feeBps uint32) uint64 {
	t.Helper()

	start := e.clock.now().Add(time.Hour)
	m, err := e.reg.CreateMarket(context.Background(), admin, CreateParams{
		Metadata: domain.Metadata{
			Title:            "Will it rain on Saturday?",
			Description:      "Resolves yes if any precipitation is recorded.",
			ResolutionSource: "national weather service",
			Category:         domain.CategoryGeneral,
			Tags:             []string{"weather"},
		},
		Window: domain.Window{StartTime: start, EndTime: start.Add(2 * time.Hour)},
		Token:  stakeToken,
		FeeBps: feeBps,
	})
	require.NoError(t, err)

	e.clock.set(start)
	return m.ID
}

// closeMarket advances the clock past the market's end time.
func (e *testEnv) closeMarket(t *testing.T, id uint64) {
	t.Helper()
	m, err := e.reg.Market(context.Background(), id)
	require.NoError(t, err)
	e.clock.set(m.Window.EndTime)
}

func (e *testEnv) vote(t *testing.T, voter common.Address, id uint64, side domain.Side, amount uint64) {
	t.Helper()
	_, err := e.reg.RecordVote(context.Background(), voter, id, side, amount)
	require.NoError(t, err)
}
