package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/wagerpool/internal/auth"
	"github.com/alanyoungcy/wagerpool/internal/domain"
	"github.com/alanyoungcy/wagerpool/internal/ledger"
	"github.com/alanyoungcy/wagerpool/internal/pool"
)

var (
	svcAdmin = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	svcAlice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	svcToken = common.HexToAddress("0x000000000000000000000000000000000000beef")
)

type fakeMarketStore struct {
	upserts []domain.Market
	err     error
}

func (f *fakeMarketStore) Upsert(_ context.Context, m domain.Market) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, m)
	return nil
}

func (f *fakeMarketStore) GetByID(context.Context, uint64) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) List(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (f *fakeMarketStore) Count(context.Context) (int64, error) {
	return int64(len(f.upserts)), nil
}

type fakeStatsCache struct {
	entries      map[uint64]domain.Stats
	invalidated  []uint64
	missesServed int
}

func newFakeStatsCache() *fakeStatsCache {
	return &fakeStatsCache{entries: make(map[uint64]domain.Stats)}
}

func (f *fakeStatsCache) Set(_ context.Context, id uint64, stats domain.Stats) error {
	f.entries[id] = stats
	return nil
}

func (f *fakeStatsCache) Get(_ context.Context, id uint64) (domain.Stats, error) {
	st, ok := f.entries[id]
	if !ok {
		f.missesServed++
		return domain.Stats{}, domain.ErrNotFound
	}
	return st, nil
}

func (f *fakeStatsCache) Invalidate(_ context.Context, id uint64) error {
	delete(f.entries, id)
	f.invalidated = append(f.invalidated, id)
	return nil
}

type fakeArchiver struct {
	archived []uint64
}

func (f *fakeArchiver) ArchiveMarket(_ context.Context, m domain.Market) error {
	f.archived = append(f.archived, m.ID)
	return nil
}

type svcEnv struct {
	svc     *MarketService
	ledger  *ledger.Memory
	store   *fakeMarketStore
	stats   *fakeStatsCache
	arch    *fakeArchiver
	clockAt time.Time
	setNow  func(time.Time)
}

func newSvcEnv(t *testing.T) *svcEnv {
	t.Helper()

	mem := ledger.NewMemory()
	require.NoError(t, mem.Credit(svcAlice, 1_000_000))

	allow, err := auth.NewAllowlist([]string{svcAdmin.Hex()})
	require.NoError(t, err)

	env := &svcEnv{
		ledger:  mem,
		store:   &fakeMarketStore{},
		stats:   newFakeStatsCache(),
		arch:    &fakeArchiver{},
		clockAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.setNow = func(at time.Time) { env.clockAt = at }

	logger := slog.New(slog.DiscardHandler)
	registry, err := pool.NewRegistry(mem, allow, nil, logger, pool.Options{
		DefaultFeeBps: 100,
		FeeRecipient:  common.HexToAddress("0x00000000000000000000000000000000000000fc"),
		Now:           func() time.Time { return env.clockAt },
	})
	require.NoError(t, err)

	env.svc = NewMarketService(registry, env.store, nil, env.stats, env.arch, logger)
	return env
}

func (e *svcEnv) openMarket(t *testing.T) domain.Market {
	t.Helper()
	start := e.clockAt.Add(time.Hour)
	m, err := e.svc.CreateMarket(context.Background(), svcAdmin, pool.CreateParams{
		Metadata: domain.Metadata{Title: "who wins", Category: domain.CategorySports},
		Window:   domain.Window{StartTime: start, EndTime: start.Add(24 * time.Hour)},
		Token:    svcToken,
	})
	require.NoError(t, err)
	e.setNow(start)
	return m
}

func TestVoteMirrorsSnapshotAndStats(t *testing.T) {
	env := newSvcEnv(t)
	m := env.openMarket(t)
	require.Len(t, env.store.upserts, 1)

	ctx := context.Background()
	updated, err := env.svc.RecordVote(ctx, svcAlice, m.ID, domain.SideYes, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), updated.TotalYesAmount)

	require.Len(t, env.store.upserts, 2)
	require.Equal(t, uint64(500), env.store.upserts[1].TotalYesAmount)

	cached, ok := env.stats.entries[m.ID]
	require.True(t, ok)
	require.Equal(t, uint64(1), cached.TotalTransactions)
}

func TestResolveArchivesAndInvalidatesStats(t *testing.T) {
	env := newSvcEnv(t)
	m := env.openMarket(t)

	ctx := context.Background()
	_, err := env.svc.RecordVote(ctx, svcAlice, m.ID, domain.SideYes, 500)
	require.NoError(t, err)

	env.setNow(env.clockAt.Add(48 * time.Hour))
	resolved, err := env.svc.Resolve(ctx, svcAdmin, m.ID, domain.OutcomeYes, "final score")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeYes, resolved.Outcome)

	require.Equal(t, []uint64{m.ID}, env.arch.archived)
	require.Contains(t, env.stats.invalidated, m.ID)
	require.Equal(t, domain.OutcomeYes, env.store.upserts[len(env.store.upserts)-1].Outcome)
}

func TestCancelArchives(t *testing.T) {
	env := newSvcEnv(t)
	m := env.openMarket(t)

	cancelled, err := env.svc.Cancel(context.Background(), svcAdmin, m.ID, "venue flooded")
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeDraw, cancelled.Outcome)
	require.Equal(t, []uint64{m.ID}, env.arch.archived)
}

func TestClaimRefreshesSnapshot(t *testing.T) {
	env := newSvcEnv(t)
	m := env.openMarket(t)

	ctx := context.Background()
	_, err := env.svc.RecordVote(ctx, svcAlice, m.ID, domain.SideYes, 500)
	require.NoError(t, err)

	env.setNow(env.clockAt.Add(48 * time.Hour))
	_, err = env.svc.Resolve(ctx, svcAdmin, m.ID, domain.OutcomeYes, "")
	require.NoError(t, err)

	before := len(env.store.upserts)
	reward, fee, err := env.svc.Claim(ctx, svcAlice, m.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(495), reward) // 500 gross minus 1% fee
	require.Equal(t, uint64(5), fee)
	require.Len(t, env.store.upserts, before+1)
}

func TestStatsPrefersCacheAndBackfills(t *testing.T) {
	env := newSvcEnv(t)
	m := env.openMarket(t)

	ctx := context.Background()
	_, err := env.svc.RecordVote(ctx, svcAlice, m.ID, domain.SideNo, 200)
	require.NoError(t, err)

	// Warm entry came from the vote path.
	st, err := env.svc.GetStats(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.UniqueVoters)
	require.Zero(t, env.stats.missesServed)

	// After invalidation the registry serves the read and the cache refills.
	require.NoError(t, env.stats.Invalidate(ctx, m.ID))
	st, err = env.svc.GetStats(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(1), st.UniqueVoters)
	require.Equal(t, 1, env.stats.missesServed)
	require.Contains(t, env.stats.entries, m.ID)
}

func TestPersistFailureDoesNotFailOperation(t *testing.T) {
	env := newSvcEnv(t)
	m := env.openMarket(t)

	env.store.err = context.DeadlineExceeded
	_, err := env.svc.RecordVote(context.Background(), svcAlice, m.ID, domain.SideYes, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(999_900), env.ledger.Balance(svcAlice))
}

func TestListEventsWithoutStore(t *testing.T) {
	env := newSvcEnv(t)
	m := env.openMarket(t)

	_, err := env.svc.ListEvents(context.Background(), m.ID, domain.ListOpts{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}
