package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/paintress/paintress-sync/internal/syncmsg"
)

const (
	writeTimeout   = 20 * time.Second
	shutdownReason = "shutdown"
)

type ClientInfo struct {
	Workspace string
	DeviceID  string
	IPAddr    string
	Version   string
}

// Client is one websocket subscriber. Messages only flow from server to client;
// anything the client sends is read and dropped to keep control frames moving.
type Client struct {
	ConnID string
	Info   *ClientInfo
	MsgTx  chan *syncmsg.Message
	Closed chan struct{}

	conn      *websocket.Conn
	wsDone    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewClient(conn *websocket.Conn, info *ClientInfo) *Client {
	return &Client{
		ConnID: uuid.NewString()[:8],
		Info:   info,
		MsgTx:  make(chan *syncmsg.Message, 64),
		Closed: make(chan struct{}),
		wsDone: make(chan struct{}),
		conn:   conn,
	}
}

func (c *Client) Start(ctx context.Context) {
	slog.Debug("events client start", "connId", c.ConnID, "workspace", c.Info.Workspace)
	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.readLoop(ctx)
}

func (c *Client) Close() {
	c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
}

func (c *Client) closeConnection(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.wsDone)
		c.conn.Close(status, reason)

		go func() {
			c.wg.Wait()
			close(c.Closed)
			slog.Debug("events client closed", "connId", c.ConnID)
		}()
	})
}

func (c *Client) readLoop(ctx context.Context) {
	defer func() {
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
	}()

	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				// closed by peer or server
			} else if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && status != websocket.StatusNoStatusRcvd {
				slog.Warn("events client reader", "error", err, "connId", c.ConnID)
			}
			return
		}
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	defer func() {
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
	}()

	for {
		select {
		case msg := <-c.MsgTx:
			ctxWrite, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(ctxWrite, c.conn, msg)
			cancel()
			if err != nil {
				slog.Error("events client writer", "connId", c.ConnID, "msgId", msg.Id, "msgType", msg.Type, "error", err)
				return
			}
			slog.Debug("events client writer", "connId", c.ConnID, "msgId", msg.Id, "msgType", msg.Type)

		case <-c.wsDone:
			return

		case <-ctx.Done():
			return
		}
	}
}

// send queues msg without blocking. It reports false when the buffer is full
// or the client is closing.
func (c *Client) send(msg *syncmsg.Message) bool {
	select {
	case <-c.wsDone:
		return false
	default:
	}
	select {
	case c.MsgTx <- msg:
		return true
	default:
		return false
	}
}
