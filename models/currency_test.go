package models

import (
	"math"
	"testing"
)

func TestUpdateUpsertsByProductID(t *testing.T) {
	table := NewCurrencies()

	table.Update(&Currency{ProductID: "ETH-USD", Price: 2000, BestBid: 1999})
	table.Update(&Currency{ProductID: "ETH-USD", Price: 2100})

	c, ok := table.Get("ETH-USD")
	if !ok {
		t.Fatalf("expected ETH-USD entry")
	}
	if c.Price != 2100 {
		t.Errorf("expected replaced price 2100, got %v", c.Price)
	}
	if c.BestBid != 0 {
		t.Errorf("expected all fields replaced, best_bid = %v", c.BestBid)
	}
	if table.Len() != 1 {
		t.Errorf("expected a single entry, got %d", table.Len())
	}
}

func TestUpdateNilIsNoop(t *testing.T) {
	table := NewCurrencies()
	table.Update(nil)
	if table.Len() != 0 {
		t.Fatalf("expected empty table after nil update")
	}
}

func TestGetMissing(t *testing.T) {
	table := NewCurrencies()
	if _, ok := table.Get("DOGE-USD"); ok {
		t.Fatalf("expected not found for unknown pair")
	}
}

func TestCrossRateDerivation(t *testing.T) {
	cases := []struct {
		name  string
		first *Currency
		then  *Currency
	}{
		{
			name:  "usd first",
			first: &Currency{ProductID: ProductBTCUSD, Price: 30000},
			then:  &Currency{ProductID: ProductBTCEUR, Price: 27000},
		},
		{
			name:  "eur first",
			first: &Currency{ProductID: ProductBTCEUR, Price: 27000},
			then:  &Currency{ProductID: ProductBTCUSD, Price: 30000},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			table := NewCurrencies()
			table.Update(tc.first)
			if _, ok := table.Get(ProductEURUSD); ok {
				t.Fatalf("cross rate must not exist with a single input pair")
			}
			table.Update(tc.then)

			eurUSD, ok := table.Get(ProductEURUSD)
			if !ok {
				t.Fatalf("expected derived EUR-USD entry")
			}
			want := 30000.0 / 27000.0
			if math.Abs(eurUSD.Price-want) > 1e-12 {
				t.Errorf("expected EUR-USD price %v, got %v", want, eurUSD.Price)
			}
		})
	}
}

func TestCrossRateRecomputedOnEitherInput(t *testing.T) {
	table := NewCurrencies()
	table.Update(&Currency{ProductID: ProductBTCUSD, Price: 30000})
	table.Update(&Currency{ProductID: ProductBTCEUR, Price: 27000})

	table.Update(&Currency{ProductID: ProductBTCUSD, Price: 33000})
	eurUSD, _ := table.Get(ProductEURUSD)
	if want := 33000.0 / 27000.0; math.Abs(eurUSD.Price-want) > 1e-12 {
		t.Errorf("expected EUR-USD %v after BTC-USD update, got %v", want, eurUSD.Price)
	}

	table.Update(&Currency{ProductID: ProductBTCEUR, Price: 30000})
	eurUSD, _ = table.Get(ProductEURUSD)
	if want := 33000.0 / 30000.0; math.Abs(eurUSD.Price-want) > 1e-12 {
		t.Errorf("expected EUR-USD %v after BTC-EUR update, got %v", want, eurUSD.Price)
	}
}

func TestDerivedEntryCarriesPriceOnly(t *testing.T) {
	table := NewCurrencies()
	table.Update(&Currency{ProductID: ProductBTCUSD, Price: 30000, Volume24h: 1234})
	table.Update(&Currency{ProductID: ProductBTCEUR, Price: 27000, Volume24h: 999})

	eurUSD, _ := table.Get(ProductEURUSD)
	if eurUSD.Volume24h != 0 || eurUSD.BestBid != 0 || eurUSD.Open24h != 0 {
		t.Errorf("derived entry must only carry a price: %+v", eurUSD)
	}
}
