package trade

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
)

func forcedTransfers(ns []engine.Notice) []engine.Notice {
	var out []engine.Notice
	for _, n := range ns {
		if n.Kind == "forced_transfer" {
			out = append(out, n)
		}
	}
	return out
}

func TestPaymentRetryAtDeadlineBeatsForcedCollection(t *testing.T) {
	m := newTestModel(t)
	seller := newTestActor(t, m, "seller", 0, 0)
	buyer := newTestActor(t, m, "buyer", 1, 0)
	_, err := NewAccounting(seller, PaymentPolicy{Timing: OnTime})
	require.NoError(t, err)
	buyerAcc, err := NewAccounting(buyer, PaymentPolicy{Timing: OnTime})
	require.NoError(t, err)
	finance := collect(m, engine.CategoryFinance)
	penalties := collect(m, engine.CategoryPenalty)

	gid := m.NextID()
	bill := &content.Bill{Header: content.NewHeader("seller", "buyer", gid), Product: pc, Price: 500, DueDate: engine.At(10)}
	require.NoError(t, issueBill(seller, bill, &Penalty{Grace: 3 * engine.Day, Fine: Fine{Fixed: 20}}))

	// Funds arrive between two daily retries; the next retry falls on the
	// deadline instant.
	_, err = buyer.At(engine.At(12.5), "salary", func() {
		require.NoError(t, buyer.Account().Deposit(1000, "salary"))
	})
	require.NoError(t, err)

	runUntil(t, m, 30)
	assert.Equal(t, economy.Money(500), seller.Account().Balance())
	assert.Equal(t, economy.Money(500), buyer.Account().Balance())
	assert.Empty(t, forcedTransfers(*finance))
	assert.Empty(t, *penalties)
	assert.Equal(t, 0, buyerAcc.Outstanding())

	payments := content.ListOf[*content.Payment](seller.Store(), gid)
	require.Len(t, payments, 1)
	assert.False(t, payments[0].Forced)
}

func TestPaymentAfterForcedCollectionIsRefunded(t *testing.T) {
	m := newTestModel(t)
	seller := newTestActor(t, m, "seller", 0, 0)
	buyer := newTestActor(t, m, "buyer", 1, 0)
	_, err := NewAccounting(seller, PaymentPolicy{Timing: OnTime})
	require.NoError(t, err)
	_, err = NewAccounting(buyer, PaymentPolicy{Timing: OnTime})
	require.NoError(t, err)
	finance := collect(m, engine.CategoryFinance)

	gid := m.NextID()
	bill := &content.Bill{Header: content.NewHeader("seller", "buyer", gid), Product: pc, Price: 500, DueDate: engine.At(10)}
	require.NoError(t, issueBill(seller, bill, &Penalty{Grace: 3 * engine.Day}))

	// A payment that was already on its way when the bill was collected.
	_, err = buyer.At(engine.At(14), "stale payment", func() {
		require.NoError(t, buyer.Account().ForceWithdraw(500, "stale payment"))
		require.NoError(t, buyer.Send(&content.Payment{Header: content.Reply(bill), BillID: bill.ID, Amount: 500}, 0))
	})
	require.NoError(t, err)

	runUntil(t, m, 30)
	assert.Equal(t, economy.Money(500), seller.Account().Balance())
	assert.Equal(t, economy.Money(-500), buyer.Account().Balance())

	var refunds []engine.Notice
	for _, n := range *finance {
		if n.Kind == "refunded" {
			refunds = append(refunds, n)
		}
	}
	require.Len(t, refunds, 1)
	assert.Equal(t, engine.At(14), refunds[0].At)
	assert.Len(t, forcedTransfers(*finance), 2, "forced collection and refund")
}

func TestShipmentAtDeliveryDeadlineIsNotFined(t *testing.T) {
	m := newTestModel(t)
	shop := newTestActor(t, m, "shop", 0, 0)
	s := newFakeSeller(t, m, "s", 100)
	penalties := collect(m, engine.CategoryPenalty)

	cfg := DefaultBuyerConfig()
	cfg.Suppliers = []string{"s"}
	cfg.Late = &Penalty{Grace: 2 * engine.Day, Fine: Fine{Fixed: 50}}
	newTestBuyer(t, shop, cfg)

	gid := sendDemand(t, shop, 10, 20)
	_, err := s.a.At(engine.At(7), "ship", func() {
		require.NoError(t, s.a.Send(&content.Shipment{
			Header:           content.NewHeader("s", "shop", gid),
			EstimatedArrival: engine.At(8),
		}, 0))
	})
	require.NoError(t, err)

	runUntil(t, m, 10)
	require.Len(t, s.orders, 1)
	assert.True(t, shop.Store().ContainsKind(gid, content.KindShipment))
	assert.Empty(t, *penalties)
	assert.Equal(t, economy.Money(1000), s.a.Account().Balance())
}

func TestUndeliverableConfirmationIsNotReportedAsRejection(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	m := newTestModel(t)
	factory := newTestActor(t, m, "factory", 0, 0)
	factory.Ledger().Track(pc, 100, 60)
	_, err := NewWarehouse(factory)
	require.NoError(t, err)
	_, err = NewSeller(factory, DefaultSellerConfig())
	require.NoError(t, err)

	// The sender is not part of the model, so the confirmation cannot be sent.
	o := &content.Order{Header: content.NewHeader("ghost", "factory", m.NextID()), Product: pc, Amount: 1}
	require.NoError(t, content.Stamp(o, m.NextID(), m.Now()))
	require.True(t, factory.Receive(o))

	assert.Contains(t, logs.String(), "order dropped, confirmation not sent")
	assert.NotContains(t, logs.String(), "order rejected")
}
