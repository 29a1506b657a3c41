package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishReachesSubscribersInOrder(t *testing.T) {
	bus := New()

	var order []string
	bus.Subscribe(AuthorDeleted, func(Event) { order = append(order, "first") })
	bus.Subscribe(AuthorDeleted, func(Event) { order = append(order, "second") })
	bus.Subscribe(BooksDeleted, func(Event) { order = append(order, "other") })

	bus.Publish(Event{Type: AuthorDeleted, AuthorID: 1})

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublishStampsTime(t *testing.T) {
	bus := New()

	var got Event
	bus.Subscribe(DownloadGrabbed, func(e Event) { got = e })

	bus.Publish(Event{Type: DownloadGrabbed, DownloadID: "dl-1"})
	assert.False(t, got.Time.IsZero())
}

func TestPublishWithoutSubscribersIsHarmless(t *testing.T) {
	bus := New()
	assert.NotPanics(t, func() {
		bus.Publish(Event{Type: PendingUpdated})
	})
}
