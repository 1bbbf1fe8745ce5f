package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"connectez-backend/internal/middleware"
	"connectez-backend/internal/models"
)

type fakeConn struct {
	mu     sync.Mutex
	closed int
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeStats struct{}

func (fakeStats) GetReferralStats(context.Context, string, time.Time, time.Duration, time.Duration) (*models.ReferralStats, error) {
	return nil, errors.New("unavailable")
}

func newTestHub() *Hub {
	// Unreachable on purpose: the relay's subscription never delivers, which
	// is all these bookkeeping tests need.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return NewHub(client, middleware.NewJWTAuth("test-secret"), fakeStats{})
}

func (h *Hub) current(code string) wsConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[code]
	if !ok {
		return nil
	}
	return sub.conn
}

func TestHubRegister_ReplacesPreviousConnection(t *testing.T) {
	h := newTestHub()

	first := &fakeConn{}
	second := &fakeConn{}

	h.register("AB12CD34", first)
	h.register("AB12CD34", second)

	if first.closeCount() == 0 {
		t.Errorf("expected first connection closed when replaced")
	}
	if h.current("AB12CD34") != second {
		t.Errorf("expected second connection to be the live subscriber")
	}
}

func TestHubUnregister_IgnoresStaleConnection(t *testing.T) {
	h := newTestHub()

	first := &fakeConn{}
	second := &fakeConn{}

	h.register("AB12CD34", first)
	h.register("AB12CD34", second)

	// The replaced connection's read loop fires unregister late; it must not
	// tear down the replacement.
	h.unregister("AB12CD34", first)
	if h.current("AB12CD34") != second {
		t.Errorf("expected stale unregister to be a no-op")
	}

	h.unregister("AB12CD34", second)
	if h.current("AB12CD34") != nil {
		t.Errorf("expected subscriber removed")
	}
	if second.closeCount() == 0 {
		t.Errorf("expected live connection closed on unregister")
	}
}

func TestHubConnectionsAreIndependentPerReferralCode(t *testing.T) {
	h := newTestHub()

	a := &fakeConn{}
	b := &fakeConn{}

	h.register("AAAA1111", a)
	h.register("BBBB2222", b)

	if a.closeCount() != 0 || b.closeCount() != 0 {
		t.Errorf("connections for different codes must not affect each other")
	}

	h.unregister("AAAA1111", a)
	if h.current("BBBB2222") != b {
		t.Errorf("expected other code's subscriber untouched")
	}
}
