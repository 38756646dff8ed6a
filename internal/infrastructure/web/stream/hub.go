package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"crypto-price-monitor/internal/application/dto"
	"crypto-price-monitor/internal/domain/entities"
	"crypto-price-monitor/internal/infrastructure/logging"
	"crypto-price-monitor/internal/infrastructure/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
)

// SnapshotSource lectura de tiers sin tocar el upstream
type SnapshotSource interface {
	CachedPrices(ctx context.Context) []entities.PriceRecord
}

// Hub empuja el snapshot de precios a todos los clientes websocket cada
// PushInterval. Es solo un consumidor de los tiers.
type Hub struct {
	source   SnapshotSource
	mapper   *dto.PriceMapper
	interval time.Duration
	clock    clockwork.Clock
	metrics  *metrics.Collector
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(source SnapshotSource, mapper *dto.PriceMapper, interval time.Duration, clock clockwork.Clock, m *metrics.Collector) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		source:   source,
		mapper:   mapper,
		interval: interval,
		clock:    clock,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// consumidores internos; el origen no se restringe
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Start lanza el loop de broadcast
func (h *Hub) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	go h.run(ctx)

	logging.Info(ctx, "Price stream hub started", logging.Fields{
		"push_interval": h.interval.String(),
	})
}

// Stop detiene el broadcast y cierra todas las conexiones
func (h *Hub) Stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.metrics.SetStreamClients(0)
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			h.Broadcast(ctx)
		}
	}
}

// Broadcast serializa el snapshot una vez y lo encola para cada cliente.
// Un cliente lento pierde el mensaje, no frena a los demás.
func (h *Hub) Broadcast(ctx context.Context) {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	payload, err := json.Marshal(h.mapper.ToPricesResponse(h.source.CachedPrices(ctx), h.clock.Now()))
	if err != nil {
		logging.ErrorWithError(ctx, "Failed to encode price snapshot", err, nil)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		sent := c.enqueue(payload)
		h.metrics.RecordStreamMessage(sent)
		if !sent {
			logging.Debug(ctx, "Stream client buffer full, dropping snapshot", logging.Fields{
				"client_id": c.id,
			})
		}
	}
}

// ServeWS maneja GET /ws/prices
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade ya respondió con el error HTTP
		logging.WarnWithError(r.Context(), "Failed to upgrade websocket connection", err, nil)
		return
	}

	c := newClient(conn)
	h.add(c)

	// snapshot inicial para no esperar al primer tick
	if payload, err := json.Marshal(h.mapper.ToPricesResponse(h.source.CachedPrices(r.Context()), h.clock.Now())); err == nil {
		c.enqueue(payload)
	}

	go c.writePump()
	go func() {
		c.readPump()
		h.remove(c.id)
	}()
}

// ClientCount clientes conectados
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetStreamClients(total)
	logging.Info(context.Background(), "Stream client connected", logging.Fields{
		"client_id":     c.id,
		"total_clients": total,
	})
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()
	h.metrics.SetStreamClients(total)
	logging.Info(context.Background(), "Stream client disconnected", logging.Fields{
		"client_id":     id,
		"total_clients": total,
	})
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// readPump descarta lo que mande el cliente; solo sirve para detectar el cierre y los pongs
func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.WarnWithError(context.Background(), "Unexpected websocket close", err, logging.Fields{
					"client_id": c.id,
				})
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
