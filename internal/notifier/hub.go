package notifier

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"connectez-backend/internal/middleware"
	"connectez-backend/internal/models"
	"connectez-backend/internal/services"
	"connectez-backend/internal/worker"
)

// KeepAliveInterval is the idle ping cadence used to detect dead dashboard
// connections.
const KeepAliveInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn is the slice of *websocket.Conn the hub needs.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// StatsProvider computes the aggregate view pushed on connect.
type StatsProvider interface {
	GetReferralStats(ctx context.Context, referralCode string, now time.Time, activeWindow, freshness time.Duration) (*models.ReferralStats, error)
}

type subscriber struct {
	conn   wsConn
	cancel context.CancelFunc
}

// Hub fans recomputed referral stats out to dashboard connections. At most
// one live connection per referral code: a later connection replaces the
// earlier one, which is closed.
type Hub struct {
	mu          sync.Mutex
	subs        map[string]*subscriber
	redisClient *redis.Client
	jwt         *middleware.JWTAuth
	stats       StatsProvider
}

func NewHub(redisClient *redis.Client, jwt *middleware.JWTAuth, stats StatsProvider) *Hub {
	return &Hub{
		subs:        make(map[string]*subscriber),
		redisClient: redisClient,
		jwt:         jwt,
		stats:       stats,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate via token query param
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwt.ParseClaims(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	referralCode, _ := claims["referral_code"].(string)
	if referralCode == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.register(referralCode, conn)

	// Detect disconnect; inbound messages are ignored.
	go func() {
		defer h.unregister(referralCode, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// register installs conn as the single subscriber for the referral code,
// replacing and closing any previous connection (most recent subscriber
// wins).
func (h *Hub) register(code string, conn wsConn) {
	h.mu.Lock()
	if old, ok := h.subs[code]; ok {
		old.cancel()
		old.conn.Close()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.subs[code] = &subscriber{conn: conn, cancel: cancel}
	h.mu.Unlock()

	go h.relay(ctx, code, conn)

	log.Printf("Dashboard subscribed: referral %s", code)
}

func (h *Hub) unregister(code string, conn wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[code]
	if !ok || sub.conn != conn {
		// Already replaced by a newer connection.
		return
	}
	sub.cancel()
	conn.Close()
	delete(h.subs, code)

	log.Printf("Dashboard unsubscribed: referral %s", code)
}

// relay owns all writes to conn: the initial snapshot, pub/sub updates, and
// idle keep-alive pings.
func (h *Hub) relay(ctx context.Context, code string, conn wsConn) {
	if snapshot := h.snapshot(ctx, code); snapshot != nil {
		if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
			return
		}
	}

	pubsub := h.redisClient.Subscribe(ctx, worker.StatsChannel(code))
	defer pubsub.Close()
	ch := pubsub.Channel()

	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) snapshot(ctx context.Context, code string) []byte {
	statsCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats, err := h.stats.GetReferralStats(statsCtx, code, time.Now().UTC(), services.ActiveUserWindow, services.FreshnessWindow)
	if err != nil {
		log.Printf("stats snapshot failed for referral %s: %v", code, err)
		return nil
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return nil
	}
	return data
}
