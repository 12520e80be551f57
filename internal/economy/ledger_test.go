package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, actual float64) (*Ledger, *Product) {
	t.Helper()
	cat, err := NewCatalog(Product{Name: "pc", UnitMarketPrice: 100})
	require.NoError(t, err)
	p, ok := cat.Get("pc")
	require.True(t, ok)
	l := NewLedger()
	l.Track(p, actual, 60)
	return l, p
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	l, _ := newTestLedger(t, 100)
	amounts := []float64{10, 25, 5, 40}
	for _, a := range amounts {
		require.NoError(t, l.Reserve("pc", a))
	}
	s, _ := l.Get("pc")
	assert.Equal(t, 80.0, s.Reserved)
	assert.Equal(t, 20.0, s.Virtual())

	for _, a := range amounts {
		require.NoError(t, l.Release("pc", a))
	}
	s, _ = l.Get("pc")
	assert.Equal(t, 0.0, s.Reserved)
	assert.Equal(t, 20.0, s.Actual)
}

func TestReleaseInsufficientLeavesLedgerUntouched(t *testing.T) {
	l, _ := newTestLedger(t, 30)
	require.NoError(t, l.Reserve("pc", 50))

	err := l.Release("pc", 50)
	require.ErrorIs(t, err, ErrInsufficientAmount)
	s, _ := l.Get("pc")
	assert.Equal(t, 30.0, s.Actual)
	assert.Equal(t, 50.0, s.Reserved)
	assert.Equal(t, -20.0, s.Virtual())

	require.NoError(t, l.AddToActual("pc", 30, 60))
	require.NoError(t, l.Release("pc", 50))
	s, _ = l.Get("pc")
	assert.Equal(t, 10.0, s.Actual)
	assert.Equal(t, 0.0, s.Reserved)
}

func TestOrderedLifecycle(t *testing.T) {
	l, _ := newTestLedger(t, 0)
	require.NoError(t, l.EnterOrdered("pc", 10, 80))
	require.NoError(t, l.EnterOrdered("pc", 10, 120))
	assert.Equal(t, 20.0, l.Virtual("pc"))

	require.NoError(t, l.ReceiveOrdered("pc", 10))
	s, _ := l.Get("pc")
	assert.Equal(t, 10.0, s.Actual)
	assert.Equal(t, 10.0, s.Ordered)
	assert.InDelta(t, 100.0, float64(s.UnitCost), 1e-9)

	require.NoError(t, l.CancelOrdered("pc", 25))
	s, _ = l.Get("pc")
	assert.Equal(t, 0.0, s.Ordered)
}

func TestRemoveFromActualReturnsRemoved(t *testing.T) {
	l, _ := newTestLedger(t, 7)
	assert.Equal(t, 5.0, l.RemoveFromActual("pc", 5))
	assert.Equal(t, 2.0, l.RemoveFromActual("pc", 5))
	assert.Equal(t, 0.0, l.RemoveFromActual("pc", 5))
	assert.Equal(t, 0.0, l.RemoveFromActual("unknown", 5))
}

func TestLedgerErrors(t *testing.T) {
	l, _ := newTestLedger(t, 7)
	require.ErrorIs(t, l.Reserve("nope", 1), ErrUnknownProduct)
	require.ErrorIs(t, l.Reserve("pc", -1), ErrNegativeAmount)
	require.ErrorIs(t, l.EnterOrdered("pc", -1, 1), ErrNegativeAmount)
}

func TestLedgerObserve(t *testing.T) {
	l, _ := newTestLedger(t, 7)
	var seen []Stock
	l.Observe(func(s Stock) { seen = append(seen, s) })
	require.NoError(t, l.Reserve("pc", 2))
	l.RemoveFromActual("pc", 1)
	require.Len(t, seen, 2)
	assert.Equal(t, 2.0, seen[0].Reserved)
	assert.Equal(t, 6.0, seen[1].Actual)
}

func TestCatalog(t *testing.T) {
	_, err := NewCatalog(Product{Name: "a"}, Product{Name: "a"})
	require.Error(t, err)
	_, err = NewCatalog(Product{Name: "b", UnitMarketPrice: -1})
	require.Error(t, err)

	cat, err := NewCatalog(Product{Name: "b"}, Product{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cat.Names())
	p, _ := cat.Get("a")
	assert.Equal(t, 1.0, p.UnitVolume)
}

func TestBankAccount(t *testing.T) {
	from := NewBankAccount("buyer", "bank", 100)
	to := NewBankAccount("seller", "bank", 0)
	var changes []BalanceChange
	from.Observe(func(c BalanceChange) { changes = append(changes, c) })

	require.ErrorIs(t, from.Withdraw(150, "bill"), ErrInsufficientFunds)
	assert.Equal(t, Money(100), from.Balance())
	require.NoError(t, from.Withdraw(40, "bill"))
	require.NoError(t, ForceTransfer(from, to, 100, "fine"))

	assert.Equal(t, Money(-40), from.Balance())
	assert.Equal(t, Money(100), to.Balance())
	require.Len(t, changes, 2)
	assert.Equal(t, "fine", changes[1].Reason)
	assert.Equal(t, "$1,234,567.5", Money(1234567.5).String())
}
