package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"coinview/logger"
	"coinview/models"
)

const clientWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient holds one subscriber connection. The send channel has capacity
// one and carries only the latest snapshot, so a slow reader never builds a
// backlog.
type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan models.PortfolioSnapshot
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

type hub struct {
	mu      sync.Mutex
	clients map[string]*wsClient
	log     *logger.Entry
}

func newHub(log *logger.Log) *hub {
	return &hub{
		clients: make(map[string]*wsClient),
		log:     log.WithComponent("gateway_hub"),
	}
}

func (h *hub) serve(w http.ResponseWriter, r *http.Request, latest func() (models.PortfolioSnapshot, bool)) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan models.PortfolioSnapshot, 1),
	}

	if snapshot, ok := latest(); ok {
		client.send <- snapshot
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.log.WithFields(logger.Fields{"client": client.id}).Info("subscriber connected")

	go h.writePump(client)
	go h.readPump(client)
}

// broadcast replaces any pending snapshot on each client so only the latest
// state is ever delivered.
func (h *hub) broadcast(snapshot models.PortfolioSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		for {
			select {
			case client.send <- snapshot:
			default:
				select {
				case <-client.send:
				default:
				}
				continue
			}
			break
		}
	}
}

func (h *hub) writePump(client *wsClient) {
	for snapshot := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if err := client.conn.WriteJSON(snapshot); err != nil {
			h.remove(client)
			return
		}
	}
}

// readPump discards inbound frames and detects the peer going away.
func (h *hub) readPump(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.remove(client)
			return
		}
	}
}

func (h *hub) remove(client *wsClient) {
	h.mu.Lock()
	_, present := h.clients[client.id]
	delete(h.clients, client.id)
	h.mu.Unlock()

	client.close()
	if present {
		h.log.WithFields(logger.Fields{"client": client.id}).Info("subscriber disconnected")
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[string]*wsClient)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}
