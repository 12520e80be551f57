package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
seed = 7
days = 30.0

[[products]]
name = "pc"
price = 800.0
volume = 1.0

[[actors]]
id = "shop"
bank = "bank"
balance = 500.0

  [actors.buyer]
  suppliers = ["factory"]
  quote_window = "36h"

    [actors.buyer.late]
    grace = "48h"
    fixed = 10.0

  [[actors.restock]]
  product = "pc"
  reorder_point = 5.0
  order_up_to = 20.0
  window = "240h"
  interval = { dist = "constant", value = 1.0 }

  [actors.accounting]
  timing = "early"
  delay = { dist = "uniform", min = 0.0, max = 2.0 }

[[actors]]
id = "factory"
bank = "bank"

  [actors.seller]
  profit_margin = 0.2
  fleet = { name = "van", speed = 8.0, loading_time = "15m" }

  [actors.warehouse]

  [actors.accounting]
  timing = "on_time"

[[actors]]
id = "bank"
bank = "bank"

  [actors.banking]
  deposit_rate = 0.01
`

func TestParseMinimal(t *testing.T) {
	cfg, err := Parse(minimal)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 30.0, cfg.Days)
	assert.Equal(t, defaultStart, cfg.Start)
	require.Len(t, cfg.Actors, 3)

	shop := cfg.Actors[0]
	require.NotNil(t, shop.Buyer)
	assert.Equal(t, 36*time.Hour, shop.Buyer.QuoteWindow.Std())
	assert.Equal(t, 48*time.Hour, shop.Buyer.Late.Grace.Std())
	assert.Equal(t, "constant", shop.Restock[0].Interval.Dist)
	assert.Equal(t, 2.0, shop.Accounting.Delay.Max)

	factory := cfg.Actors[1]
	require.NotNil(t, factory.Seller.ProfitMargin)
	assert.Equal(t, 0.2, *factory.Seller.ProfitMargin)
	require.NotNil(t, factory.Seller.Fleet)
	assert.Equal(t, 15*time.Minute, factory.Seller.Fleet.LoadingTime.Std())
	assert.NotNil(t, factory.Warehouse)
	assert.Nil(t, factory.Buyer)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	doc, err := cfg.Encode()
	require.NoError(t, err)
	back, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, cfg.Actors[2].Buyer.Late, back.Actors[2].Buyer.Late)
	assert.Equal(t, cfg.Actors[4].Carrier.Modes, back.Actors[4].Carrier.Modes)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.toml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Products, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{
			name:   "unknown supplier and product",
			mutate: func(c *Config) { c.Actors[2].Buyer.Directory = "nobody"; c.Actors[2].Restock[0].Product = "tv" },
			want:   []string{`unknown actor "nobody"`, `unknown product "tv"`},
		},
		{
			name:   "duplicate actor",
			mutate: func(c *Config) { c.Actors[1].ID = "shop" },
			want:   []string{`duplicate actor "shop"`},
		},
		{
			name:   "bad distribution",
			mutate: func(c *Config) { c.Actors[2].Consumption[0].Interval.Mean = 0 },
			want:   []string{"exponential: mean must be positive"},
		},
		{
			name: "transporter without carrier role",
			mutate: func(c *Config) {
				c.Actors[4].Carrier = nil
				c.Days = 0
			},
			want: []string{`transporter "truckco" has no carrier role`, "days must be positive"},
		},
		{
			name:   "accounting without account",
			mutate: func(c *Config) { c.Actors[4].Bank = "" },
			want:   []string{"accounting without bank account"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			for _, w := range tt.want {
				assert.Contains(t, err.Error(), w)
			}
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse("days = 3.0\ncolour = \"red\"\n[[actors]]\nid = \"a\"\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")

	_, err = Parse("days = 3.0\n[[actors]]\nid = \"a\"\n[actors.buyer]\nquote_window = \"soon\"\n")
	require.Error(t, err)
}

func TestExplicitZeroMarginIsKept(t *testing.T) {
	cfg, err := Parse(`
days = 3.0

[[actors]]
id = "shop"

  [actors.buyer]
  max_price_margin = 0.0
`)
	require.NoError(t, err)
	b := cfg.Actors[0].Buyer
	require.NotNil(t, b.MaxPriceMargin)
	assert.Equal(t, 0.0, *b.MaxPriceMargin)
	assert.Nil(t, b.MinAmountMargin)
}
