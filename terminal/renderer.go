// Package terminal renders portfolio snapshots as a live console board.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"coinview/models"
)

// ANSI color codes
const (
	ansiReset       = "\033[0m"
	ansiRed         = "\033[31m"
	ansiGreen       = "\033[32m"
	ansiYellow      = "\033[33m"
	ansiDim         = "\033[2m"
	ansiClearScreen = "\033[2J\033[H"
)

// Colorize applies ANSI color to a string
func Colorize(s, color string) string {
	return color + s + ansiReset
}

// Renderer writes each snapshot as a full-screen board. Output is an injected
// writer so tests can capture it.
type Renderer struct {
	out io.Writer

	mu       sync.Mutex
	prevUSD  float64
	prevSeen bool
}

// NewRenderer creates a new Renderer
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

func (r *Renderer) Render(snapshot models.PortfolioSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(ansiClearScreen)

	sb.WriteString(Colorize("[COINVIEW] ", ansiDim))
	sb.WriteString(fmt.Sprintf("base=%s  %s\n\n", snapshot.Base, snapshot.Timestamp.Format("15:04:05")))

	for _, coin := range snapshot.Coins {
		sb.WriteString(fmt.Sprintf("%-6s %14.8f  ", coin.Currency, coin.Balance))
		sb.WriteString(Colorize("USD:"+formatWorth(coin.USDWorth), worthColor(coin.USDWorth)))
		sb.WriteString("  ")
		sb.WriteString(Colorize("EUR:"+formatWorth(coin.EURWorth), worthColor(coin.EURWorth)))
		sb.WriteString("\n")
	}

	totalCol := ansiYellow
	if r.prevSeen {
		if snapshot.TotalUSDWorth > r.prevUSD {
			totalCol = ansiGreen
		} else if snapshot.TotalUSDWorth < r.prevUSD {
			totalCol = ansiRed
		}
	}
	r.prevUSD = snapshot.TotalUSDWorth
	r.prevSeen = true

	sb.WriteString("\n")
	sb.WriteString(Colorize(
		fmt.Sprintf("TOTAL  USD:%.2f  EUR:%.2f", snapshot.TotalUSDWorth, snapshot.TotalEURWorth),
		totalCol,
	))
	sb.WriteString("\n")

	fmt.Fprint(r.out, sb.String())
}

func formatWorth(worth *float64) string {
	if worth == nil {
		return "--"
	}
	return fmt.Sprintf("%.2f", *worth)
}

func worthColor(worth *float64) string {
	if worth == nil {
		return ansiYellow
	}
	return ansiGreen
}
