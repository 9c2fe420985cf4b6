package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/service"
)

const (
	TypeCart      = "cart"
	TypeFavorites = "favorites"
	TypeListing   = "listing"

	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

// Message событие, которое уходит клиентам как JSON
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ConnMetrics счётчик подключений (реализован internal/metrics)
type ConnMetrics interface {
	WSClientConnected()
	WSClientDisconnected()
}

type client struct {
	id     string
	send   chan Message
	mu     sync.Mutex
	closed bool
}

// trySend неблокирующая отправка; false если клиент закрыт или не успевает читать
func (c *client) trySend(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub рассылает изменения корзины, избранного и выдачи подключённым WebSocket клиентам
type Hub struct {
	logger   *zap.Logger
	metrics  ConnMetrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub создаёт hub; metrics может быть nil
func NewHub(logger *zap.Logger, metrics ConnMetrics) *Hub {
	return &Hub{
		logger:  logger.With(zap.String("component", "ws_hub")),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// API слушает localhost, UI может открываться с любого origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Bind подписывает hub на все источники состояния
func (h *Hub) Bind(cart *service.CartStore, favorites *service.FavoritesStore, listing *service.ListingController) {
	cart.Subscribe(func(snap service.CartSnapshot) {
		h.Broadcast(Message{Type: TypeCart, Data: service.Summarize(snap)})
	})
	favorites.Subscribe(func(snap service.FavoritesSnapshot) {
		h.Broadcast(Message{Type: TypeFavorites, Data: FavoritesPayload(snap)})
	})
	listing.OnChange(func(view service.ListingView) {
		h.Broadcast(Message{Type: TypeListing, Data: view})
	})
}

// FavoritesPayload форма события избранного
func FavoritesPayload(snap service.FavoritesSnapshot) map[string]any {
	return map[string]any{
		"ids":     snap.IDs,
		"count":   len(snap.IDs),
		"version": snap.Version,
	}
}

// Broadcast отправляет сообщение всем клиентам. Медленные клиенты отключаются.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(msg) {
			h.logger.Warn("ws client is too slow, disconnecting", zap.String("client_id", c.id))
			h.unregister(c)
		}
	}
}

// ClientCount число подключённых клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов и запрещает новые подключения
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if h.metrics != nil {
			h.metrics.WSClientDisconnected()
		}
	}
	return nil
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.WSClientConnected()
	}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		c.close()
		if h.metrics != nil {
			h.metrics.WSClientDisconnected()
		}
	}
}

// ServeHTTP делает upgrade до WebSocket и держит соединение до отключения клиента
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{id: uuid.New().String(), send: make(chan Message, sendBuffer)}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		return
	}
	h.logger.Info("ws client connected",
		zap.String("client_id", c.id),
		zap.String("remote_addr", r.RemoteAddr),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.writePump(conn, c)
	}()
	go func() {
		defer wg.Done()
		h.readPump(conn, c)
	}()
	wg.Wait()

	h.logger.Info("ws client disconnected", zap.String("client_id", c.id))
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				// readPump выходит по ошибке чтения после закрытия соединения
				_ = conn.Close()
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write failed", zap.String("client_id", c.id), zap.Error(err))
				h.unregister(c)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				_ = conn.Close()
				return
			}
		}
	}
}

// readPump только обслуживает pong/close; входящие сообщения игнорируются
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer h.unregister(c)

	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("ws read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
	}
}
