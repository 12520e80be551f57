package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// newTestModel builds two actors that exchanged one Demand and a Quote.
func newTestModel(t *testing.T) (*actor.Model, uint64) {
	t.Helper()
	m := actor.NewModel(engine.NewScheduler(start))
	pc := &economy.Product{Name: "pc", UnitMarketPrice: 100, UnitVolume: 1}
	shop, err := m.NewActor("shop", "Shop", world.Location{Name: "shop"})
	require.NoError(t, err)
	factory, err := m.NewActor("factory", "Factory", world.Location{Name: "factory", Coord: world.HexCoord{Q: 3}})
	require.NoError(t, err)
	shop.OpenAccount("bank", 500)
	shop.Ledger().Track(pc, 4, 80)
	factory.Ledger().Track(pc, 90, 60)
	require.NoError(t, factory.Ledger().Reserve("pc", 10))

	sink, err := actor.NewRole("sink", nil,
		actor.On(func(*content.Demand) {}),
		actor.On(func(*content.Quote) {}),
	)
	require.NoError(t, err)
	require.NoError(t, factory.AddRole(sink))

	gid := m.NextID()
	require.NoError(t, shop.Send(&content.Demand{
		Header:     content.NewHeader("shop", "factory", gid),
		Product:    pc,
		Amount:     10,
		LatestDate: engine.At(5),
	}, 0))
	require.NoError(t, factory.Send(&content.Quote{
		Header:    content.NewHeader("factory", "factory", m.NextID()),
		Product:   pc,
		Amount:    10,
		UnitPrice: 110,
	}, engine.Day))
	require.NoError(t, m.Scheduler().RunUntil(engine.At(2)))
	return m, gid
}

func TestRunsAndMeta(t *testing.T) {
	db := newTestDB(t)
	first, err := db.StartRun(start, 1, "seed = 1")
	require.NoError(t, err)
	second, err := db.StartRun(start, 2, "seed = 2")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	latest, err := db.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, second, latest.ID)
	assert.Equal(t, int64(2), latest.Seed)
	assert.Equal(t, "2024-01-01T00:00:00Z", latest.StartedAt)

	require.NoError(t, db.SaveMeta(first, "days", "10"))
	require.NoError(t, db.SaveMeta(first, "days", "20"))
	v, err := db.GetMeta(first, "days")
	require.NoError(t, err)
	assert.Equal(t, "20", v)
	_, err = db.GetMeta(second, "days")
	require.Error(t, err)
}

func TestJournalFlushesNotices(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun(start, 1, "")
	require.NoError(t, err)
	j := NewJournal(db, run)

	m, _ := newTestModel(t)
	require.NoError(t, j.Flush())
	m.Subscribe(j.Listen)
	m.Emit(engine.Notice{Category: engine.CategoryPenalty, Kind: "late_delivery", Actor: "shop", Meta: map[string]any{"amount": 12.5}})
	m.Emit(engine.Notice{Category: engine.CategoryPenalty, Kind: "late_delivery", Actor: "shop"})
	m.Emit(engine.Notice{Category: engine.CategoryOrder, Kind: "ordered", Actor: "shop", Description: "10 pc"})
	assert.Equal(t, 3, j.Pending())

	require.NoError(t, j.Flush())
	assert.Equal(t, 0, j.Pending())
	assert.Equal(t, 3, j.Written())

	recent, err := db.RecentNotices(run, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "ordered", recent[0].Kind)
	assert.Equal(t, engine.At(2), recent[0].Time())
	assert.Equal(t, "null", recent[1].Meta)

	counts, err := db.NoticeCounts(run)
	require.NoError(t, err)
	assert.Equal(t, []NoticeCount{
		{Category: engine.CategoryOrder, Kind: "ordered", Count: 1},
		{Category: engine.CategoryPenalty, Kind: "late_delivery", Count: 2},
	}, counts)
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun(start, 1, "")
	require.NoError(t, err)
	m, gid := newTestModel(t)

	j := NewJournal(db, run)
	require.NoError(t, j.Checkpoint(m))
	// A second snapshot replaces the first.
	require.NoError(t, db.SaveSnapshot(run, m))

	shopTrail, err := db.LoadContents(run, "shop", gid)
	require.NoError(t, err)
	require.Len(t, shopTrail, 1)
	assert.Equal(t, string(content.KindDemand), shopTrail[0].Kind)
	assert.Equal(t, "sent", shopTrail[0].Direction)
	assert.Contains(t, shopTrail[0].Body, `"amount":10`)

	factoryTrail, err := db.LoadContents(run, "factory", 0)
	require.NoError(t, err)
	require.Len(t, factoryTrail, 2)
	assert.Equal(t, "received", factoryTrail[0].Direction)
	assert.Equal(t, "self", factoryTrail[1].Direction)
	assert.Equal(t, int64(engine.At(0)), factoryTrail[1].At)

	ledgers, err := db.LoadLedgers(run)
	require.NoError(t, err)
	assert.Equal(t, []LedgerRow{
		{Actor: "factory", Product: "pc", Actual: 90, Reserved: 10},
		{Actor: "shop", Product: "pc", Actual: 4},
	}, ledgers)

	balances, err := db.LoadBalances(run)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"shop": 500}, balances)

	at, err := db.GetMeta(run, "snapshot_at")
	require.NoError(t, err)
	assert.Equal(t, "172800000000000", at)
}
