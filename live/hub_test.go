package live

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForRoomSize(t *testing.T, hub *Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.RoomSize(room) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached size %d (got %d)", room, want, hub.RoomSize(room))
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := NewClient(hub, nil, RoomTennisUpdates)
	second := NewClient(hub, nil, RoomTennisUpdates)

	hub.Register <- first
	hub.Register <- second
	waitForRoomSize(t, hub, RoomTennisUpdates, 2)

	hub.Unregister <- first
	waitForRoomSize(t, hub, RoomTennisUpdates, 1)

	hub.Unregister <- second
	waitForRoomSize(t, hub, RoomTennisUpdates, 0)
}

func TestBroadcastDeliversToEveryClientInRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	first := NewClient(hub, nil, RoomTennisUpdates)
	second := NewClient(hub, nil, RoomTennisUpdates)
	other := NewClient(hub, nil, "other_room")

	hub.Register <- first
	hub.Register <- second
	hub.Register <- other
	waitForRoomSize(t, hub, RoomTennisUpdates, 2)
	waitForRoomSize(t, hub, "other_room", 1)

	hub.BroadcastToRoom(RoomTennisUpdates, Notification{Type: "clock_update", Payload: map[string]string{"value": "00:42"}})

	for _, client := range []*Client{first, second} {
		select {
		case raw := <-client.send:
			var notification Notification
			require.NoError(t, json.Unmarshal(raw, &notification))
			assert.Equal(t, "clock_update", notification.Type)
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}

	select {
	case <-other.send:
		t.Fatal("client in another room received the broadcast")
	default:
	}
}

func TestBroadcastToUnknownRoomIsANoOp(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	assert.NotPanics(t, func() {
		hub.BroadcastToRoom("nobody_here", Notification{Type: "coords"})
	})
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, RoomTennisUpdates)
	hub.Register <- client
	waitForRoomSize(t, hub, RoomTennisUpdates, 1)

	done := make(chan struct{})
	go func() {
		// Nobody reads client.send; overflow past the buffer must not block.
		for i := 0; i < sendBufferSize+10; i++ {
			hub.BroadcastToRoom(RoomTennisUpdates, Notification{Type: "coords"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
	assert.Len(t, client.send, sendBufferSize)
}

func TestUnregisterClosesSendChannelOnce(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient(hub, nil, RoomTennisUpdates)
	hub.Register <- client
	waitForRoomSize(t, hub, RoomTennisUpdates, 1)

	hub.Unregister <- client
	waitForRoomSize(t, hub, RoomTennisUpdates, 0)

	_, open := <-client.send
	assert.False(t, open)

	// Repeat unregister for a client no longer in a room: must not panic on
	// a double close.
	assert.NotPanics(t, func() {
		hub.Unregister <- client
		time.Sleep(20 * time.Millisecond)
	})
}
