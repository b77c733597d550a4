package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefs-dev/sefs/pkg/model"
)

func TestPublish_DeliversToAllSubscribers(t *testing.T) {
	t.Parallel()
	b := New()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()

	b.Publish(model.Broadcast{Type: model.EventScanStart})

	for _, ch := range []<-chan model.Broadcast{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, model.EventScanStart, got.Type)
		case <-time.After(time.Second):
			t.Fatal("expected broadcast, got none")
		}
	}
}

func TestUnsubscribe_StopsDeliveryAndClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe()
	unsub()

	b.Publish(model.Broadcast{Type: model.EventFileAdded})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestPublish_NeverBlocksOnFullSubscriberBuffer(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish(model.Broadcast{Type: model.EventFileAdded})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestSubscriberCount(t *testing.T) {
	t.Parallel()
	b := New()
	require.Equal(t, 0, b.SubscriberCount())
	_, unsub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())
	unsub()
	assert.Equal(t, 0, b.SubscriberCount())
}
