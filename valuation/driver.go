// Package valuation joins account balances with live market data and keeps
// the portfolio worth current.
package valuation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"coinview/coinbase"
	"coinview/config"
	"coinview/feed"
	"coinview/internal/channel"
	"coinview/logger"
	"coinview/models"
)

// AccountSource lists the wallets whose balances make up the portfolio.
type AccountSource interface {
	ListAccounts(ctx context.Context) ([]coinbase.Account, error)
}

// MarketFeed is the market data surface the driver consumes.
type MarketFeed interface {
	ConnectionStates() <-chan bool
	Ticks() <-chan feed.Ticker
	Subscribe(tickers []string) error
}

// Renderer receives every published snapshot.
type Renderer interface {
	Render(snapshot models.PortfolioSnapshot)
}

type Driver struct {
	cfg        config.PortfolioConfig
	source     AccountSource
	feed       MarketFeed
	currencies *models.Currencies
	portfolio  *models.Portfolio
	snapshots  *channel.Snapshots
	renderer   Renderer

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	refreshOnce sync.Once

	log *logger.Entry
}

func NewDriver(cfg config.PortfolioConfig, source AccountSource, marketFeed MarketFeed, currencies *models.Currencies, portfolio *models.Portfolio, snapshots *channel.Snapshots) *Driver {
	return &Driver{
		cfg:        cfg,
		source:     source,
		feed:       marketFeed,
		currencies: currencies,
		portfolio:  portfolio,
		snapshots:  snapshots,
		log:        logger.GetLogger().WithComponent("valuation_driver"),
	}
}

// SetRenderer attaches an optional snapshot renderer. Must be called before
// Start.
func (d *Driver) SetRenderer(r Renderer) {
	d.renderer = r
}

func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("valuation driver already running")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true

	d.wg.Add(1)
	go d.run()

	d.log.Info("valuation driver started")
	return nil
}

func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("valuation driver stopped")
}

func (d *Driver) run() {
	defer d.wg.Done()

	states := d.feed.ConnectionStates()
	ticks := d.feed.Ticks()

	for {
		select {
		case <-d.ctx.Done():
			return
		case connected := <-states:
			if !connected {
				d.log.Warn("market data feed disconnected")
				continue
			}
			d.log.Info("market data feed connected, refreshing balances")
			// Refresh off the event loop so a slow account fetch never
			// stalls tick handling.
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.refresh()
			}()
			// Periodic refresh begins with the first successful connect
			// and runs for the driver lifetime, across reconnects.
			d.refreshOnce.Do(func() {
				d.wg.Add(1)
				go d.refreshLoop()
			})
		case tick := <-ticks:
			d.onTick(tick)
		}
	}
}

func (d *Driver) refreshLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.refresh()
		}
	}
}

// refresh pulls account balances and reconciles the portfolio with them. A
// failed fetch skips the cycle; the previous balances stay in effect.
func (d *Driver) refresh() {
	accounts, err := d.source.ListAccounts(d.ctx)
	if err != nil {
		d.log.WithError(err).Warn("failed to refresh account balances")
		return
	}

	updated := 0
	for _, account := range accounts {
		balance, err := strconv.ParseFloat(account.Balance, 64)
		if err != nil {
			d.log.WithFields(logger.Fields{
				"account":  account.ID,
				"currency": account.Currency,
				"balance":  account.Balance,
			}).Warn("skipping account with unparseable balance")
			continue
		}
		if balance == 0 {
			continue
		}
		d.portfolio.Update(models.NewCoin(account.ID, account.Currency, balance))
		updated++
	}
	d.portfolio.CalculateWorth()

	if err := d.feed.Subscribe(d.portfolio.TickerIDs()); err != nil {
		d.log.WithError(err).Warn("failed to subscribe portfolio tickers")
	}

	logger.IncrementBalanceRefresh()
	d.log.WithFields(logger.Fields{
		"accounts": len(accounts),
		"holdings": updated,
	}).Debug("balances refreshed")

	d.publish()
}

func (d *Driver) onTick(tick feed.Ticker) {
	d.currencies.Update(&models.Currency{
		ProductID: tick.ProductID,
		Price:     tick.Price,
		Open24h:   tick.Open24h,
		Volume24h: tick.Volume24h,
		Low24h:    tick.Low24h,
		High24h:   tick.High24h,
		Volume30d: tick.Volume30d,
		BestBid:   tick.BestBid,
		BestAsk:   tick.BestAsk,
	})
	d.portfolio.CalculateWorth()
	d.publish()
}

func (d *Driver) publish() {
	snapshot := d.portfolio.Snapshot()
	d.snapshots.Send(snapshot)
	logger.IncrementSnapshotPush(len(snapshot.Coins))

	if d.renderer != nil {
		d.renderer.Render(snapshot)
	}
}
