// Package events pushes change notifications to the clients of a workspace.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/paintress/paintress-sync/internal/server/handlers/api"
	"github.com/paintress/paintress-sync/internal/server/middlewares"
	"github.com/paintress/paintress-sync/internal/syncmsg"
	"github.com/paintress/paintress-sync/internal/version"
)

const maxMessageSize = 64 * 1024

type Hub struct {
	clients  map[string]*Client // ConnID -> Client
	register chan *Client
	ctx      context.Context
	cancel   context.CancelFunc

	wg sync.WaitGroup
	mu sync.RWMutex
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:  make(map[string]*Client),
		register: make(chan *Client),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run registers new clients until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	slog.Info("events hub started")
	defer slog.Info("events hub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnID] = client
			slog.Debug("events hub registered", "connId", client.ConnID, "workspace", client.Info.Workspace, "active", len(h.clients))
			h.mu.Unlock()

			h.wg.Add(1)
			client.Start(h.ctx)
			go func() {
				<-client.Closed

				h.mu.Lock()
				delete(h.clients, client.ConnID)
				slog.Debug("events hub removed", "connId", client.ConnID, "workspace", client.Info.Workspace, "active", len(h.clients))
				h.mu.Unlock()
				h.wg.Done()
			}()

		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every client and waits for them to unregister.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("events hub shutdown")
	case <-ctx.Done():
		slog.Warn("events hub shutdown timed out", "error", ctx.Err())
	}
}

// Publish sends msg to every client subscribed to workspace and returns how
// many clients received it.
func (h *Hub) Publish(workspace string, msg *syncmsg.Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if client.Info.Workspace != workspace {
			continue
		}
		if client.send(msg) {
			sent++
		} else {
			slog.Warn("events hub send buffer full", "connId", client.ConnID, "workspace", workspace)
		}
	}
	return sent
}

// ActiveClients returns the number of connected clients of workspace.
func (h *Hub) ActiveClients(workspace string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, client := range h.clients {
		if client.Info.Workspace == workspace {
			n++
		}
	}
	return n
}

// Handler upgrades the request to a websocket and subscribes it to the
// workspace of the caller.
func (h *Hub) Handler(ctx *gin.Context) {
	workspace := middlewares.Workspace(ctx)
	if workspace == "" {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeInvalidRequest, fmt.Errorf("workspace missing"))
		return
	}

	conn, err := websocket.Accept(ctx.Writer, ctx.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("websocket accept failed: %w", err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := NewClient(conn, &ClientInfo{
		Workspace: workspace,
		DeviceID:  ctx.GetHeader("X-Paintress-Device-Id"),
		IPAddr:    ctx.ClientIP(),
		Version:   ctx.GetHeader("X-Paintress-Version"),
	})

	client.MsgTx <- syncmsg.NewSystemMessage(version.Version, "ok")

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.Close()
	}
}
