package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coinview/config"
	"coinview/internal/channel"
	"coinview/logger"
	"coinview/models"
)

func newTestServer(t *testing.T) (*Server, *channel.Snapshots, *httptest.Server, context.CancelFunc) {
	t.Helper()
	snapshots := channel.NewSnapshots(8)
	server := NewServer(config.GatewayConfig{
		Enabled: true,
		Address: "127.0.0.1:0",
	}, logger.GetLogger(), snapshots)
	if server == nil {
		t.Fatal("expected enabled gateway server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go server.consume(ctx)

	httpServer := httptest.NewServer(server.buildRouter())
	t.Cleanup(httpServer.Close)
	return server, snapshots, httpServer, cancel
}

func waitForSnapshot(t *testing.T, server *Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := server.latestSnapshot(); ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for gateway to consume snapshot")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewServerDisabled(t *testing.T) {
	server := NewServer(config.GatewayConfig{Enabled: false}, logger.GetLogger(), nil)
	if server != nil {
		t.Fatal("expected nil server when gateway disabled")
	}
	if err := server.Run(context.Background()); err != nil {
		t.Fatalf("nil server run: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	_, _, httpServer, cancel := newTestServer(t)
	defer cancel()

	res, err := http.Get(httpServer.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
}

func TestPortfolioBeforeFirstSnapshot(t *testing.T) {
	_, _, httpServer, cancel := newTestServer(t)
	defer cancel()

	res, err := http.Get(httpServer.URL + "/portfolio")
	if err != nil {
		t.Fatalf("portfolio request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before first snapshot, got %d", res.StatusCode)
	}
}

func TestPortfolioServesLatestSnapshot(t *testing.T) {
	server, snapshots, httpServer, cancel := newTestServer(t)
	defer cancel()

	snapshots.Send(models.PortfolioSnapshot{Base: "EUR", TotalUSDWorth: 100})
	snapshots.Send(models.PortfolioSnapshot{Base: "EUR", TotalUSDWorth: 250})
	waitForSnapshot(t, server)

	deadline := time.Now().Add(2 * time.Second)
	for {
		res, err := http.Get(httpServer.URL + "/portfolio")
		if err != nil {
			t.Fatalf("portfolio request: %v", err)
		}
		var snapshot models.PortfolioSnapshot
		if err := json.NewDecoder(res.Body).Decode(&snapshot); err != nil {
			t.Fatalf("decode portfolio: %v", err)
		}
		res.Body.Close()
		if snapshot.TotalUSDWorth == 250 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected latest snapshot, got total %v", snapshot.TotalUSDWorth)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebsocketPush(t *testing.T) {
	server, snapshots, httpServer, cancel := newTestServer(t)
	defer cancel()

	snapshots.Send(models.PortfolioSnapshot{Base: "EUR", TotalUSDWorth: 100})
	waitForSnapshot(t, server)

	wsEndpoint := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsEndpoint, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// New subscribers receive the current state immediately.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var snapshot models.PortfolioSnapshot
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if snapshot.TotalUSDWorth != 100 {
		t.Fatalf("unexpected initial snapshot total %v", snapshot.TotalUSDWorth)
	}

	snapshots.Send(models.PortfolioSnapshot{Base: "EUR", TotalUSDWorth: 300})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if err := conn.ReadJSON(&snapshot); err != nil {
			t.Fatalf("read pushed snapshot: %v", err)
		}
		if snapshot.TotalUSDWorth == 300 {
			return
		}
	}
}
