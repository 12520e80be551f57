package config

import (
	"time"

	"github.com/samber/lo"

	"github.com/talgya/tradesim/internal/dist"
)

var defaultStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Default returns a small supply chain: a retailer restocking from a
// manufacturer through a directory, with a trucking company, a bank and
// noisy customer demand.
func Default() *Config {
	return &Config{
		Seed:  1,
		Start: defaultStart,
		Days:  90,
		Products: []Product{
			{Name: "pc", Unit: "piece", Price: 800, Volume: 1},
			{Name: "monitor", Unit: "piece", Price: 200, Volume: 0.5},
		},
		Actors: []Actor{
			{
				ID: "bank", Name: "First Bank", Q: 0, R: 0,
				Bank: "bank", Balance: 1_000_000,
				Banking: &Banking{DepositRate: 0.02, OverdraftRate: 0.12, Interval: day},
			},
			{
				ID: "dir", Name: "Trade Directory", Q: 1, R: 0,
				Directory: &Directory{Listings: map[string][]string{
					"pc":      {"factory"},
					"monitor": {"factory"},
				}},
			},
			{
				ID: "shop", Name: "Corner Shop", Q: 0, R: 2,
				Bank: "bank", Balance: 50_000,
				Stock: []Stock{{Product: "pc", Actual: 10, UnitCost: 700}, {Product: "monitor", Actual: 10, UnitCost: 150}},
				Buyer: &Buyer{
					Directory:       "dir",
					QuoteWindow:     day,
					MaxPriceMargin:  lo.ToPtr(0.4),
					MinAmountMargin: lo.ToPtr(0.3),
					Late:            &Penalty{Grace: 2 * day, Fixed: 50, Margin: 0.05},
				},
				Restock: []Restock{
					{Product: "pc", ReorderPoint: 8, OrderUpTo: 30, Window: 10 * day, Interval: dist.Spec{Dist: "constant", Value: 1}},
					{Product: "monitor", ReorderPoint: 8, OrderUpTo: 25, Window: 10 * day, Interval: dist.Spec{Dist: "constant", Value: 1}},
				},
				Accounting: &Accounting{Timing: "late", Delay: &dist.Spec{Dist: "uniform", Min: 0, Max: 2}},
				Consumption: []Consumption{
					{
						Product:  "pc",
						Amount:   dist.Spec{Dist: "uniform", Min: 0, Max: 3},
						Interval: dist.Spec{Dist: "exponential", Mean: 0.5},
						Price:    1000,
						Noise:    &Noise{Amplitude: 0.4, Period: 30},
					},
					{
						Product:  "monitor",
						Amount:   dist.Spec{Dist: "normal", Mean: 1.5, StdDev: 0.5},
						Interval: dist.Spec{Dist: "exponential", Mean: 0.5},
						Price:    260,
					},
				},
				Costs: []Cost{{Name: "rent", Amount: 100, Interval: day}},
			},
			{
				ID: "factory", Name: "PC Works", Q: 6, R: -1,
				Bank: "bank", Balance: 20_000,
				Stock: []Stock{{Product: "pc", Actual: 40, UnitCost: 600}, {Product: "monitor", Actual: 40, UnitCost: 120}},
				Production: []Production{
					{Product: "pc", Amount: dist.Spec{Dist: "constant", Value: 5}, Interval: dist.Spec{Dist: "constant", Value: 1}, UnitCost: 600},
					{Product: "monitor", Amount: dist.Spec{Dist: "uniform", Min: 2, Max: 6}, Interval: dist.Spec{Dist: "constant", Value: 1}, UnitCost: 120},
				},
				Warehouse: &Warehouse{},
				Seller: &Seller{
					ProfitMargin:    lo.ToPtr(0.1),
					QuoteValidity:   2 * day,
					HandlingTime:    day,
					Transporters:    []string{"truckco"},
					TransportWindow: Duration(6 * time.Hour),
					PaymentTerm:     14 * day,
					Overdue:         &Penalty{Grace: 7 * day, Fixed: 25, Margin: 0.02, Prorated: true},
				},
				Accounting: &Accounting{Timing: "on_time"},
				Costs:      []Cost{{Name: "wages", Amount: 300, Interval: 7 * day}},
			},
			{
				ID: "truckco", Name: "Truck Co", Q: 3, R: 1,
				Bank: "bank", Balance: 1_000,
				Carrier: &Carrier{
					Modes: []Mode{
						{Name: "truck", Speed: 10, LoadingTime: Duration(30 * time.Minute), UnloadingTime: Duration(30 * time.Minute), CostPerHex: 0.5, MinimumCost: 2},
						{Name: "van", Speed: 14, LoadingTime: Duration(10 * time.Minute), UnloadingTime: Duration(10 * time.Minute), CostPerHex: 0.9, MinimumCost: 3},
					},
					Hubs:          []Hub{{Name: "crossroads", Q: 3, R: 0}},
					Margin:        0.1,
					QuoteValidity: 2 * day,
					PaymentTerm:   14 * day,
				},
				Accounting: &Accounting{Timing: "immediate"},
			},
		},
	}
}
