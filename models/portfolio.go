package models

import (
	"sync"
	"time"
)

// Coin is a single owned balance. USDWorth and EURWorth are nil until a
// worth calculation succeeded for the respective fiat; a coin whose trading
// pair has not ticked yet simply reads as unknown.
type Coin struct {
	ID       string   `json:"id"`
	Currency string   `json:"currency"`
	Balance  float64  `json:"balance"`
	TickerID string   `json:"ticker_id"`
	USDWorth *float64 `json:"usd_worth,omitempty"`
	EURWorth *float64 `json:"eur_worth,omitempty"`
}

// NewCoin builds a coin for the given account. The trading pair is always
// quoted in USD.
func NewCoin(id, currency string, balance float64) *Coin {
	return &Coin{
		ID:       id,
		Currency: currency,
		Balance:  balance,
		TickerID: currency + "-USD",
	}
}

// update replaces the coin's balance data with the latest account snapshot.
// Worth fields are left for the next calculation.
func (c *Coin) update(other *Coin) {
	c.Currency = other.Currency
	c.Balance = other.Balance
	c.TickerID = other.Currency + "-USD"
}

// calculateWorth computes the coin's fiat worth from its trading pair and the
// derived EUR-USD rate. Missing currencies leave the corresponding worth
// untouched.
func (c *Coin) calculateWorth(pair Currency, pairOK bool, eurUSD Currency, eurUSDOK bool) {
	if pairOK {
		worth := pair.Price * c.Balance
		c.USDWorth = &worth
	}
	if c.USDWorth != nil && eurUSDOK {
		worth := *c.USDWorth / eurUSD.Price
		c.EURWorth = &worth
	}
}

// PortfolioSnapshot is an immutable copy of the portfolio published to the
// gateway and the terminal renderer.
type PortfolioSnapshot struct {
	Base          string    `json:"base"`
	TotalUSDWorth float64   `json:"total_usd_worth"`
	TotalEURWorth float64   `json:"total_eur_worth"`
	Coins         []Coin    `json:"coins"`
	Timestamp     time.Time `json:"timestamp"`
}

// Portfolio tracks owned coins keyed by account id and their aggregate fiat
// worth against the shared currency table.
type Portfolio struct {
	mu         sync.RWMutex
	coins      map[string]*Coin
	order      []string
	base       string
	currencies *Currencies
	totalUSD   float64
	totalEUR   float64
}

func NewPortfolio(base string, currencies *Currencies) *Portfolio {
	return &Portfolio{
		coins:      make(map[string]*Coin),
		base:       base,
		currencies: currencies,
	}
}

// Update inserts or replaces the coin for its account id, then recomputes
// aggregate worth. A nil coin is a no-op. When the same account reappears its
// balance is replaced, not summed.
func (p *Portfolio) Update(coin *Coin) {
	if coin == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.coins[coin.ID]; ok {
		existing.update(coin)
	} else {
		c := *coin
		p.coins[coin.ID] = &c
		p.order = append(p.order, coin.ID)
	}

	p.calculateWorthLocked()
}

// CalculateWorth recomputes every coin's worth and the portfolio totals from
// the current currency table. Coins without a matching currency entry keep
// unknown worth and contribute zero to the totals.
func (p *Portfolio) CalculateWorth() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calculateWorthLocked()
}

func (p *Portfolio) calculateWorthLocked() {
	eurUSD, eurUSDOK := p.currencies.Get(ProductEURUSD)

	var usd, eur float64
	for _, coin := range p.coins {
		pair, pairOK := p.currencies.Get(coin.TickerID)
		coin.calculateWorth(pair, pairOK, eurUSD, eurUSDOK)

		if coin.USDWorth != nil {
			usd += *coin.USDWorth
		}
		if coin.EURWorth != nil {
			eur += *coin.EURWorth
		}
	}

	p.totalUSD = usd
	p.totalEUR = eur
}

// TickerIDs returns the trading pair ids for all held coins, in insertion
// order. It drives the feed subscription.
func (p *Portfolio) TickerIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.order))
	for _, id := range p.order {
		ids = append(ids, p.coins[id].TickerID)
	}
	return ids
}

// Totals returns the aggregate USD and EUR worth.
func (p *Portfolio) Totals() (usd, eur float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.totalUSD, p.totalEUR
}

// Snapshot returns a deep copy of the portfolio for publication.
func (p *Portfolio) Snapshot() PortfolioSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	coins := make([]Coin, 0, len(p.order))
	for _, id := range p.order {
		coin := *p.coins[id]
		if coin.USDWorth != nil {
			v := *coin.USDWorth
			coin.USDWorth = &v
		}
		if coin.EURWorth != nil {
			v := *coin.EURWorth
			coin.EURWorth = &v
		}
		coins = append(coins, coin)
	}

	return PortfolioSnapshot{
		Base:          p.base,
		TotalUSDWorth: p.totalUSD,
		TotalEURWorth: p.totalEUR,
		Coins:         coins,
		Timestamp:     time.Now().UTC(),
	}
}
