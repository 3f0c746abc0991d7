package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/outlive-sh/outlive/internal/domain"
	"github.com/outlive-sh/outlive/internal/domain/bounty"
	"github.com/outlive-sh/outlive/internal/domain/turn"
	"github.com/outlive-sh/outlive/internal/port/bountysource"
	"github.com/outlive-sh/outlive/internal/port/database"
	"github.com/outlive-sh/outlive/internal/port/messagequeue"
	"github.com/outlive-sh/outlive/internal/port/reasoning"
	"github.com/outlive-sh/outlive/internal/port/trade"
	"github.com/outlive-sh/outlive/internal/port/wallet"
)

// fakeStore is an in-memory database.Store for service tests.
type fakeStore struct {
	turns    []turn.Turn
	bounties map[string]bounty.Bounty
	state    map[string][]byte
	metrics  map[string][]float64

	turnErr    error
	historyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bounties: make(map[string]bounty.Bounty),
		state:    make(map[string][]byte),
		metrics:  make(map[string][]float64),
	}
}

func (s *fakeStore) StoreTurn(_ context.Context, t *turn.Turn) error {
	if s.turnErr != nil {
		return s.turnErr
	}
	s.turns = append(s.turns, *t)
	return nil
}

func (s *fakeStore) GetRecentTurns(_ context.Context, n int) ([]turn.Turn, error) {
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	if n > len(s.turns) {
		n = len(s.turns)
	}
	out := make([]turn.Turn, n)
	copy(out, s.turns[len(s.turns)-n:])
	return out, nil
}

func (s *fakeStore) GetFirstTurn(_ context.Context) (*turn.Turn, error) {
	if len(s.turns) == 0 {
		return nil, domain.ErrNotFound
	}
	t := s.turns[0]
	return &t, nil
}

func (s *fakeStore) GetBounties(_ context.Context, filter database.BountyFilter) ([]bounty.Bounty, error) {
	var out []bounty.Bounty
	for _, b := range s.bounties {
		if filter.Status != nil && b.Status != *filter.Status {
			continue
		}
		if filter.Source != nil && b.Source != *filter.Source {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) GetBounty(_ context.Context, id string) (*bounty.Bounty, error) {
	b, ok := s.bounties[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (s *fakeStore) StoreBounties(_ context.Context, bounties []bounty.Bounty) error {
	for _, b := range bounties {
		if existing, ok := s.bounties[b.ID]; ok && existing.Status.IsTerminal() {
			continue
		}
		s.bounties[b.ID] = b
	}
	return nil
}

func (s *fakeStore) UpdateBountyStatus(_ context.Context, id string, status bounty.Status, claimedAt *time.Time) error {
	b, ok := s.bounties[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !bounty.CanTransition(b.Status, status, false) {
		return domain.ErrConflict
	}
	b.Status = status
	if claimedAt != nil {
		b.ClaimedAt = claimedAt
	}
	s.bounties[id] = b
	return nil
}

func (s *fakeStore) StoreState(_ context.Context, id, _ string, data []byte) error {
	s.state[id] = data
	return nil
}

func (s *fakeStore) GetState(_ context.Context, id string) ([]byte, error) {
	data, ok := s.state[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) StoreMetric(_ context.Context, name string, value float64) error {
	s.metrics[name] = append(s.metrics[name], value)
	return nil
}

func (s *fakeStore) GetStats(_ context.Context, _ time.Time) (*database.Stats, error) {
	stats := &database.Stats{TurnCount: len(s.turns)}
	for _, t := range s.turns {
		if t.Failed() {
			stats.FailedTurns++
		}
	}
	for _, v := range s.metrics["earnings"] {
		stats.TotalEarned += v
		stats.MetricPoints++
	}
	return stats, nil
}

func (s *fakeStore) Cleanup(_ context.Context, _ int) (int64, error) { return 0, nil }

// fakeBalances returns canned balance snapshots and can fail on demand.
type fakeBalances struct {
	native uint64
	stable uint64
	err    error
}

func (f *fakeBalances) GetBalance(_ context.Context, _ *wallet.Wallet) (*wallet.Balances, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &wallet.Balances{
		Native:          f.native,
		Stable:          f.stable,
		NativeFormatted: fmt.Sprintf("%.4f SOL", float64(f.native)/1e9),
		StableFormatted: fmt.Sprintf("%.2f USDC", float64(f.stable)/1e6),
		Timestamp:       time.Now().UTC(),
	}, nil
}

// fakeLedger is a canned chain client.
type fakeLedger struct {
	height  uint64
	healthy bool
}

func (f *fakeLedger) CurrentHeight(_ context.Context) (uint64, error) { return f.height, nil }
func (f *fakeLedger) IsHealthy(_ context.Context) bool                { return f.healthy }
func (f *fakeLedger) RecentBlockReference(_ context.Context, _ int) (string, error) {
	return "blockhash", nil
}

// fakeSource serves canned bounties and status signals.
type fakeSource struct {
	name     bounty.Source
	listings []bounty.Bounty
	signals  map[string]*bountysource.StatusSignal
	fetchErr error
	checkErr error
	checked  []string
}

func (f *fakeSource) Name() bounty.Source { return f.name }

func (f *fakeSource) Fetch(_ context.Context) ([]bounty.Bounty, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.listings, nil
}

func (f *fakeSource) CheckStatus(_ context.Context, b *bounty.Bounty) (*bountysource.StatusSignal, error) {
	f.checked = append(f.checked, b.ID)
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	if sig, ok := f.signals[b.ID]; ok {
		return sig, nil
	}
	return &bountysource.StatusSignal{}, nil
}

// fakeTransferrer records transfer calls and returns a canned result.
type fakeTransferrer struct {
	result     wallet.TransferResult
	recipients []string
	amounts    []uint64
}

func (f *fakeTransferrer) Transfer(_ context.Context, _ *wallet.Wallet, recipient string, amount uint64) (*wallet.TransferResult, error) {
	f.recipients = append(f.recipients, recipient)
	f.amounts = append(f.amounts, amount)
	r := f.result
	return &r, nil
}

// fakeTrader quotes a fixed rate and records swaps.
type fakeTrader struct {
	rate     float64
	swapped  []trade.Quote
	quoteErr error
	swapFail string
}

func (f *fakeTrader) GetQuote(_ context.Context, inMint, outMint string, amount uint64, slippageBps int) (*trade.Quote, error) {
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &trade.Quote{
		InMint:      inMint,
		OutMint:     outMint,
		InAmount:    amount,
		OutAmount:   uint64(float64(amount) * f.rate),
		SlippageBps: slippageBps,
	}, nil
}

func (f *fakeTrader) ExecuteSwap(_ context.Context, _ *wallet.Wallet, q *trade.Quote) (*trade.SwapResult, error) {
	f.swapped = append(f.swapped, *q)
	if f.swapFail != "" {
		return &trade.SwapResult{Error: f.swapFail}, nil
	}
	return &trade.SwapResult{Success: true, Signature: "swapsig"}, nil
}

// fakeReasoner scripts reasoning responses per model.
type fakeReasoner struct {
	responses map[string]string // model -> response
	errs      map[string]error  // model -> error
	requests  []reasoning.Request
}

func (f *fakeReasoner) Complete(_ context.Context, req reasoning.Request) (string, error) {
	f.requests = append(f.requests, req)
	if err, ok := f.errs[req.Model]; ok && err != nil {
		return "", err
	}
	return f.responses[req.Model], nil
}

// fakeQueue records published events.
type fakeQueue struct {
	published map[string][][]byte
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{published: make(map[string][][]byte)}
}

func (f *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	f.published[subject] = append(f.published[subject], data)
	return nil
}

func (f *fakeQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (f *fakeQueue) Close() error { return nil }
