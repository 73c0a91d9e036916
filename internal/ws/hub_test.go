package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/farmlink/api/internal/events"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, userID int64) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		send:   make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)

	client := mockClient(hub, 7)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[7] == nil {
		t.Fatal("user room not created")
	}
	if !hub.rooms[7][client] {
		t.Fatal("client not registered in user room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := startHub(t)

	client := mockClient(hub, 7)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[7] != nil {
		t.Fatal("user room not cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestBroadcastToSingleUser(t *testing.T) {
	hub := startHub(t)

	client1 := mockClient(hub, 1)
	client2 := mockClient(hub, 2)
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	testPayload := json.RawMessage(`{"orderId":10}`)
	hub.BroadcastToUser(1, Event{Type: events.TypeOrderCreated, Payload: testPayload})

	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != events.TypeOrderCreated {
			t.Errorf("expected type %q, got %q", events.TypeOrderCreated, received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload %s, got %s", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for a different user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToMultipleConnectionsOfSameUser(t *testing.T) {
	hub := startHub(t)

	clients := []*Client{mockClient(hub, 3), mockClient(hub, 3), mockClient(hub, 3)}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToUser(3, Event{Type: events.TypeOrderCanceled, Payload: json.RawMessage(`{}`)})

	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != events.TypeOrderCanceled {
				t.Errorf("client%d: expected type %q, got %q", i+1, events.TypeOrderCanceled, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestPublishFansOutToEveryFarmer(t *testing.T) {
	hub := startHub(t)

	farmerA := mockClient(hub, 11)
	farmerB := mockClient(hub, 12)
	bystander := mockClient(hub, 13)
	hub.register <- farmerA
	hub.register <- farmerB
	hub.register <- bystander
	time.Sleep(10 * time.Millisecond)

	evt := events.OrderEvent{
		Type:        events.TypeOrderCreated,
		OrderID:     99,
		OrderNumber: "FL-20260101-ABCDEF12",
		FarmerIDs:   []int64{11, 12},
		TotalPrice:  "12.50",
	}
	if err := hub.Publish(context.Background(), evt); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, c := range []*Client{farmerA, farmerB} {
		select {
		case msg := <-c.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			var payload events.OrderEvent
			if err := json.Unmarshal(received.Payload, &payload); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
			if payload.OrderNumber != evt.OrderNumber {
				t.Errorf("expected order number %s, got %s", evt.OrderNumber, payload.OrderNumber)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("farmer %d did not receive the event", c.userID)
		}
	}

	select {
	case <-bystander.send:
		t.Fatal("unrelated farmer should not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishHonoursCanceledContext(t *testing.T) {
	// No Run loop and a full buffer, so the send can only fail through ctx.
	hub := NewHub()
	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- &userEvent{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hub.Publish(ctx, events.OrderEvent{Type: events.TypeOrderCreated, FarmerIDs: []int64{1}})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHubCleanupEmptyRoom(t *testing.T) {
	hub := startHub(t)

	client1 := mockClient(hub, 5)
	client2 := mockClient(hub, 5)
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[5]) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(hub.rooms[5]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client1
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if len(hub.rooms[5]) != 1 {
		t.Fatalf("expected 1 client after first unregister, got %d", len(hub.rooms[5]))
	}
	hub.mu.RUnlock()

	hub.unregister <- client2
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	if hub.rooms[5] != nil {
		t.Fatal("room should be deleted when last client unregisters")
	}
	hub.mu.RUnlock()
}

func TestHubRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := mockClient(hub, 8)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("client send channel should be closed on shutdown")
	}
}
