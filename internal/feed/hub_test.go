package feed

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/clickreward-backend/internal/model"
)

func msgs(evs []model.Event) []string {
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Message
	}
	return out
}

func TestRecentIsCappedNewestFirst(t *testing.T) {
	h := NewHub(3)
	assert.Empty(t, h.Recent(10))

	for i := 1; i <= 5; i++ {
		h.Publish(model.Event{Kind: model.EventClick, Message: fmt.Sprint(i)})
	}

	assert.Equal(t, []string{"5", "4", "3"}, msgs(h.Recent(0)))
	assert.Equal(t, []string{"5", "4"}, msgs(h.Recent(2)))
	assert.False(t, h.Recent(1)[0].At.IsZero())
}

func TestSubscribeReceivesAndCancels(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe(4)
	require.Equal(t, 1, h.SubscriberCount())

	h.Publish(model.Event{Message: "a"})
	ev := <-ch
	assert.Equal(t, "a", ev.Message)

	cancel()
	cancel()
	assert.Equal(t, 0, h.SubscriberCount())
	_, open := <-ch
	assert.False(t, open)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish(model.Event{Message: "first"})
	h.Publish(model.Event{Message: "dropped"})

	assert.Equal(t, "first", (<-ch).Message)
	assert.Len(t, h.Recent(0), 2)
}
