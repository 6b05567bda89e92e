package ws

import (
	"context"
	"errors"
	"sync"

	"aulanet/internal/models"

	"github.com/google/uuid"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

// Connection wraps a websocket with a buffered outbound queue so that
// group broadcasts never block on a slow peer. Each Connection has its
// own ID: two tabs of the same user are distinct group members.
type Connection struct {
	id       string
	userID   string
	ws       wsConnection
	outbound chan models.ServerEnvelope
}

func NewConnection(ws wsConnection, userID string) *Connection {
	return &Connection{
		id:       uuid.NewString(),
		userID:   userID,
		ws:       ws,
		outbound: make(chan models.ServerEnvelope, 64),
	}
}

func (c *Connection) Key() string {
	return c.id
}

func (c *Connection) UserID() string {
	return c.userID
}

// Deliver queues msg for the write loop. A full queue drops the
// message instead of blocking the broadcaster.
func (c *Connection) Deliver(msg models.ServerEnvelope) {
	select {
	case c.outbound <- msg:
	default:
	}
}

// Run drives the connection until the transport closes or ctx is
// cancelled. One goroutine pumps inbound messages; the main loop
// interleaves them with queued outbound writes, so a single client's
// events are processed strictly in arrival order. onMessage may be nil
// for channels that ignore client input.
func (c *Connection) Run(ctx context.Context, onMessage func(models.ClientEnvelope)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fromClient := make(chan models.ClientEnvelope)
	errCh := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Go(func() {
		errCh <- c.pumpMessages(ctx, fromClient)
		cancel()
	})

	wg.Go(func() {
		errCh <- c.mainLoop(ctx, fromClient, onMessage)
		cancel()
	})

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context, fromClient chan<- models.ClientEnvelope) error {
	for {
		var msg models.ClientEnvelope
		if err := c.ws.ReadJSON(&msg); err != nil {
			return err
		}
		select {
		case fromClient <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context, fromClient <-chan models.ClientEnvelope, onMessage func(models.ClientEnvelope)) error {
	for {
		select {
		case msg := <-fromClient:
			if onMessage != nil {
				onMessage(msg)
			}
		case msg := <-c.outbound:
			if err := c.ws.WriteJSON(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
