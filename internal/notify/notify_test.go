package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestEventFor(t *testing.T) {
	kitchen := NewEvent(OrderCreated, nil, GroupKitchen)
	assert.True(t, kitchen.For(GroupKitchen))
	assert.False(t, kitchen.For(GroupCashier))
	assert.True(t, kitchen.For(GroupAll))

	everyone := NewEvent(CAIActivated, nil)
	assert.Equal(t, []Group{GroupAll}, everyone.Groups)
	assert.True(t, everyone.For(GroupCashier))
	assert.NotEmpty(t, everyone.ID)
}

func TestHubDeliversByGroup(t *testing.T) {
	hub := NewHub()
	kitchen, _ := hub.Subscribe(GroupKitchen)
	cashier, _ := hub.Subscribe(GroupCashier)
	defer kitchen.Close()
	defer cashier.Close()

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, NewEvent(OrderCreated, map[string]any{"order_id": 1}, GroupKitchen, GroupCashier)))
	require.NoError(t, hub.Publish(ctx, NewEvent(InvoiceIssued, nil, GroupCashier)))

	assert.Equal(t, OrderCreated, (<-kitchen.Events()).Type)
	assert.Equal(t, OrderCreated, (<-cashier.Events()).Type)
	assert.Equal(t, InvoiceIssued, (<-cashier.Events()).Type)

	select {
	case ev := <-kitchen.Events():
		t.Fatalf("kitchen received %s", ev.Type)
	default:
	}
}

func TestHubBacklogAndClose(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	for i := 0; i < DefaultBacklogSize+5; i++ {
		require.NoError(t, hub.Publish(ctx, NewEvent(OrderUpdated, map[string]any{"n": i}, GroupKitchen)))
	}

	sub, backlog := hub.Subscribe(GroupKitchen)
	assert.Len(t, backlog, DefaultBacklogSize)
	assert.Equal(t, 5, backlog[0].Payload["n"])

	_, none := hub.Subscribe(GroupCashier)
	assert.Empty(t, none)

	hub.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())
	assert.NoError(t, hub.Publish(ctx, NewEvent(OrderUpdated, nil)))
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	sub, _ := hub.Subscribe(GroupAll)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultSubscriberBuffer*3; i++ {
			_ = hub.Publish(context.Background(), NewEvent(OrderUpdated, nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.Events(), DefaultSubscriberBuffer)
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("down")}
	err := Multi{ok, nil, bad}.Publish(context.Background(), NewEvent(OrderCreated, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, bad.count())
}

func TestEmitSwallowsErrors(t *testing.T) {
	bad := &recorder{err: errors.New("down")}
	assert.NotPanics(t, func() {
		Emit(context.Background(), bad, zap.NewNop(), NewEvent(OrderCreated, nil))
		Emit(context.Background(), nil, zap.NewNop(), NewEvent(OrderCreated, nil))
	})
	assert.Equal(t, 1, bad.count())
}

func TestDecodeRemoteSkipsOwnEvents(t *testing.T) {
	_, ok := decodeRemote([]byte(`{"id":"a","type":"order.created","origin":"me"}`), "me")
	assert.False(t, ok)

	ev, ok := decodeRemote([]byte(`{"id":"b","type":"order.created","groups":["cocina"],"origin":"other"}`), "me")
	require.True(t, ok)
	assert.Equal(t, OrderCreated, ev.Type)
	assert.True(t, ev.For(GroupKitchen))

	_, ok = decodeRemote([]byte(`not json`), "me")
	assert.False(t, ok)
}

type botMock struct {
	mock.Mock
}

func (m *botMock) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func TestTelegramSendsSelectedEvents(t *testing.T) {
	bot := &botMock{}
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 42 && msg.Text != ""
	})).Return(nil).Once()

	sink := NewTelegram(bot, 42)
	ctx := context.Background()
	require.NoError(t, sink.Publish(ctx, NewEvent(OrderCreated, nil, GroupKitchen)))
	require.NoError(t, sink.Publish(ctx, NewEvent(InvoiceIssued, map[string]any{
		"document_number": "001-001-01-00000001",
		"total":           "215.00",
	}, GroupCashier)))

	bot.AssertExpectations(t)
}

func TestFormatMessage(t *testing.T) {
	ev := NewEvent(InvoiceIssued, map[string]any{
		"document_number": "001-001-01-00000007",
		"total":           "215.00",
		"order_code":      "ORD-20261017-0003",
	})
	text := FormatMessage(ev)
	assert.Contains(t, text, "Factura 001-001-01-00000007 emitida por L 215.00 (orden ORD-20261017-0003)")

	closed := FormatMessage(NewEvent(CashSessionClosed, map[string]any{"session_id": 3, "closing_amount": "1500.00"}))
	assert.Contains(t, closed, "Caja #3 cerrada con L 1500.00 declarados")
}

func TestAsyncRetriesThenDelivers(t *testing.T) {
	var calls atomic.Int32
	flaky := publishFunc(func(context.Context, Event) error {
		if calls.Add(1) < 3 {
			return errors.New("temporary")
		}
		return nil
	})

	a := NewAsync(flaky, "test", 4, zap.NewNop())
	a.backoff = time.Millisecond
	var failures atomic.Int32
	a.OnFailure = func(string) { failures.Add(1) }

	require.NoError(t, a.Publish(context.Background(), NewEvent(InvoiceIssued, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(0), failures.Load())

	// After Close events are ignored.
	assert.NoError(t, a.Publish(context.Background(), NewEvent(InvoiceIssued, nil)))
}

func TestAsyncReportsQueueFull(t *testing.T) {
	block := make(chan struct{})
	slow := publishFunc(func(context.Context, Event) error {
		<-block
		return nil
	})
	a := NewAsync(slow, "slow", 1, zap.NewNop())
	var failures atomic.Int32
	a.OnFailure = func(string) { failures.Add(1) }

	ctx := context.Background()
	var full bool
	for i := 0; i < 10 && !full; i++ {
		full = errors.Is(a.Publish(ctx, NewEvent(OrderUpdated, nil)), ErrQueueFull)
	}
	assert.True(t, full)
	assert.GreaterOrEqual(t, failures.Load(), int32(1))

	close(block)
	closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(closeCtx))
}

type publishFunc func(context.Context, Event) error

func (f publishFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }
