package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"aulanet/internal/models"
)

type mockWS struct {
	readCh      chan models.ClientEnvelope
	writeCh     chan models.ServerEnvelope
	closeCh     chan struct{}
	closed      bool
	errToReturn error
}

func newMockWS() *mockWS {
	return &mockWS{
		readCh:  make(chan models.ClientEnvelope, 10),
		writeCh: make(chan models.ServerEnvelope, 10),
		closeCh: make(chan struct{}),
	}
}

func (m *mockWS) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.closeCh)
	return nil
}

func (m *mockWS) WriteJSON(v interface{}) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	if msg, ok := v.(models.ServerEnvelope); ok {
		m.writeCh <- msg
	}
	return nil
}

func (m *mockWS) ReadJSON(v interface{}) error {
	if m.errToReturn != nil {
		return m.errToReturn
	}
	select {
	case msg, ok := <-m.readCh:
		if !ok {
			return errors.New("closed")
		}
		if ptr, ok := v.(*models.ClientEnvelope); ok {
			*ptr = msg
		}
		return nil
	case <-m.closeCh:
		return errors.New("connection closed")
	}
}

func (m *mockWS) expectWrite(t *testing.T) models.ServerEnvelope {
	t.Helper()
	select {
	case msg := <-m.writeCh:
		return msg
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for write")
		return models.ServerEnvelope{}
	}
}

func (m *mockWS) expectNoWrite(t *testing.T) {
	t.Helper()
	select {
	case msg := <-m.writeCh:
		t.Fatalf("unexpected write: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnection_RunDeliversOutbound(t *testing.T) {
	mock := newMockWS()
	conn := NewConnection(mock, "u1")

	done := make(chan error, 1)
	go func() { done <- conn.Run(context.Background(), nil) }()

	conn.Deliver(models.ServerEnvelope{Type: models.MessageTypeChat, Message: "hola"})

	got := mock.expectWrite(t)
	if got.Message != "hola" {
		t.Errorf("expected hola, got %+v", got)
	}

	_ = mock.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on close: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not return after close")
	}
}

func TestConnection_RunInvokesHandlerInOrder(t *testing.T) {
	mock := newMockWS()
	conn := NewConnection(mock, "u1")

	received := make(chan models.ClientEnvelope, 10)
	go func() {
		_ = conn.Run(context.Background(), func(msg models.ClientEnvelope) {
			received <- msg
		})
	}()

	for _, content := range []string{"one", "two", "three"} {
		mock.readCh <- models.ClientEnvelope{Type: models.MessageTypeChat, Message: content}
	}

	for _, want := range []string{"one", "two", "three"} {
		select {
		case got := <-received:
			if got.Message != want {
				t.Errorf("expected %q, got %q", want, got.Message)
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}

	_ = mock.Close()
}

func TestConnection_RunStopsOnContextCancel(t *testing.T) {
	mock := newMockWS()
	conn := NewConnection(mock, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx, nil) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on cancel: %v", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !mock.closed {
		t.Error("transport not closed after cancel")
	}
}

func TestConnection_DeliverDropsWhenFull(t *testing.T) {
	mock := newMockWS()
	conn := NewConnection(mock, "u1")

	// No Run loop draining the queue; filling past the buffer must not
	// block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			conn.Deliver(models.ServerEnvelope{Type: models.MessageTypeChat})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Deliver blocked on full queue")
	}
}

func TestConnection_DistinctKeys(t *testing.T) {
	c1 := NewConnection(newMockWS(), "u1")
	c2 := NewConnection(newMockWS(), "u1")
	if c1.Key() == c2.Key() {
		t.Error("two connections of the same user share a key")
	}
	if c1.UserID() != "u1" {
		t.Errorf("unexpected user ID %s", c1.UserID())
	}
}
