package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testPayload(t *testing.T, eventType string) Payload {
	t.Helper()
	p, err := NewPayload(eventType, "test", nil, SeverityInfo)
	require.NoError(t, err)
	return p
}

func TestDispatchInvokesHandlersInRegistrationOrder(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	var order []string
	d.On(EventTradeOpened, func(ctx context.Context, p Payload) error {
		order = append(order, "first")
		return nil
	})
	d.On(EventTradeOpened, func(ctx context.Context, p Payload) error {
		order = append(order, "second")
		return nil
	})

	d.Dispatch(context.Background(), testPayload(t, EventTradeOpened))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatchContinuesPastFailingHandler(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	var order []string
	d.On(EventTradeOpened, func(ctx context.Context, p Payload) error {
		order = append(order, "first")
		return errors.New("handler failed")
	})
	d.On(EventTradeOpened, func(ctx context.Context, p Payload) error {
		order = append(order, "second")
		return nil
	})

	d.Dispatch(context.Background(), testPayload(t, EventTradeOpened))
	assert.Equal(t, []string{"first", "second"}, order, "a failing handler must not stop the rest")
}

func TestDispatchContinuesPastPanickingHandler(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	var ran bool
	d.On(EventTradeOpened, func(ctx context.Context, p Payload) error {
		panic("handler blew up")
	})
	d.On(EventTradeOpened, func(ctx context.Context, p Payload) error {
		ran = true
		return nil
	})

	d.Dispatch(context.Background(), testPayload(t, EventTradeOpened))
	assert.True(t, ran)
}

func TestDispatchOnlyMatchingType(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	var calls int
	d.On(EventTradeClosed, func(ctx context.Context, p Payload) error {
		calls++
		return nil
	})

	d.Dispatch(context.Background(), testPayload(t, EventTradeOpened))
	assert.Zero(t, calls)

	d.Dispatch(context.Background(), testPayload(t, EventTradeClosed))
	assert.Equal(t, 1, calls)
}
