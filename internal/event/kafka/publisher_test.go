package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
	"github.com/shestoi/GoBigTech/storefront/internal/service"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func decode(t *testing.T, msg kafka.Message) StateEvent {
	t.Helper()
	var ev StateEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	return ev
}

func TestCartChangedMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := service.CartSnapshot{
		Op:      service.CartOpAdd,
		Version: 7,
		Items: []service.CartLineItem{
			{Product: catalog.Product{ID: 1, Price: 20, DiscountPercentage: 20, Stock: 5}, Quantity: 2},
		},
	}

	msg, err := CartChangedMessage(snap, at)
	require.NoError(t, err)
	assert.Equal(t, "cart", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	ev := decode(t, msg)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, EventTypeCartChanged, ev.EventType)
	assert.Equal(t, 1, ev.EventVersion)
	assert.Equal(t, "2024-03-01T12:00:00Z", ev.OccurredAt)
	assert.Equal(t, service.CartOpAdd, ev.Op)
	assert.Equal(t, uint64(7), ev.StateVersion)

	var data struct {
		ItemCount  int    `json:"itemCount"`
		TotalPrice string `json:"totalPrice"`
	}
	require.NoError(t, json.Unmarshal(ev.Data, &data))
	assert.Equal(t, 2, data.ItemCount)
	assert.Equal(t, "40", data.TotalPrice)
}

func TestFavoritesChangedMessage_EmptyIDs(t *testing.T) {
	msg, err := FavoritesChangedMessage(service.FavoritesSnapshot{Op: service.FavoritesOpClear, Version: 3}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "favorites", string(msg.Key))

	ev := decode(t, msg)
	assert.Equal(t, EventTypeFavoritesChanged, ev.EventType)
	assert.JSONEq(t, `{"ids":[],"count":0}`, string(ev.Data))
}

func TestStateEventPublisher_Bind(t *testing.T) {
	w := &fakeWriter{}
	p := newStateEventPublisher(zap.NewNop(), w, "storefront.state-events")

	cart := service.NewCartStore(zap.NewNop(), nil)
	favorites := service.NewFavoritesStore(zap.NewNop(), nil)
	p.Bind(cart, favorites)

	cart.AddItem(catalog.Product{ID: 1, Price: 10, Stock: 3})
	favorites.Toggle(5, nil)
	favorites.Toggle(6, nil)

	require.Len(t, w.messages, 3)
	assert.Equal(t, EventTypeCartChanged, decode(t, w.messages[0]).EventType)

	last := decode(t, w.messages[2])
	assert.Equal(t, EventTypeFavoritesChanged, last.EventType)
	assert.JSONEq(t, `{"ids":[6,5],"count":2}`, string(last.Data))

	// event_id уникален для каждого события
	assert.NotEqual(t, decode(t, w.messages[1]).EventID, last.EventID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestStateEventPublisher_WriteErrorDoesNotBreakStore(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newStateEventPublisher(zap.NewNop(), w, "t")

	cart := service.NewCartStore(zap.NewNop(), nil)
	p.Bind(cart, service.NewFavoritesStore(zap.NewNop(), nil))

	snap := cart.AddItem(catalog.Product{ID: 1, Price: 10, Stock: 3})
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, cart.GetQuantity(1))
}
