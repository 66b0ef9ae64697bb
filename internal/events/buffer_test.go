package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kassa/internal/core/id"
)

type fakePublisher struct {
	published []Event
	fail      error
	panic     bool
}

func (p *fakePublisher) Publish(ctx context.Context, event Event) error {
	if p.panic {
		panic("publisher exploded")
	}
	if p.fail != nil {
		return p.fail
	}
	p.published = append(p.published, event)
	return nil
}

func stockEvent() Event {
	return Event{
		Kind:      KindStockUpdate,
		CompanyID: id.New(),
		Payload:   StockUpdatePayload{NewQuantity: 1},
	}
}

func TestBuffer_FlushPublishesInOrderAndClears(t *testing.T) {
	buf := NewBuffer()
	first := stockEvent()
	second := Event{Kind: KindSaleCompleted, CompanyID: first.CompanyID}
	buf.Add(first)
	buf.Add(second)
	require.Equal(t, 2, buf.Len())

	pub := &fakePublisher{}
	buf.Flush(context.Background(), pub)

	require.Len(t, pub.published, 2)
	assert.Equal(t, KindStockUpdate, pub.published[0].Kind)
	assert.Equal(t, KindSaleCompleted, pub.published[1].Kind)
	assert.Equal(t, 0, buf.Len())
}

func TestBuffer_FlushSwallowsPublishErrors(t *testing.T) {
	buf := NewBuffer()
	buf.Add(stockEvent())

	buf.Flush(context.Background(), &fakePublisher{fail: errors.New("hub down")})
	assert.Equal(t, 0, buf.Len())
}

func TestBuffer_FlushRecoversPublisherPanic(t *testing.T) {
	buf := NewBuffer()
	buf.Add(stockEvent())

	assert.NotPanics(t, func() {
		buf.Flush(context.Background(), &fakePublisher{panic: true})
	})
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), stockEvent()))
}
