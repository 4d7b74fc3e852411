package remotefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/paintress/paintress-sync/internal/syncmsg"
	"github.com/paintress/paintress-sync/internal/utils"
	"github.com/paintress/paintress-sync/internal/version"
)

const (
	eventsDialTimeout = 10 * time.Second
	eventsPingPeriod  = 20 * time.Second
	eventsPingTimeout = 5 * time.Second
	eventsMaxBackoff  = 2 * time.Minute
)

// Subscribe streams FILES_CHANGED events of the workspace to fn until ctx is
// done, reconnecting with backoff. Events caused by this device are skipped.
func (c *Client) Subscribe(ctx context.Context, fn func(*syncmsg.FilesChanged)) error {
	backoff := time.Second
	for {
		connected, err := c.listen(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return err
		}
		if connected {
			backoff = time.Second
		}
		slog.Warn("events disconnected", "error", err, "retry", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, eventsMaxBackoff)
	}
}

func (c *Client) listen(ctx context.Context, fn func(*syncmsg.FilesChanged)) (bool, error) {
	url, err := utils.WebsocketURL(c.serverURL, v1Events)
	if err != nil {
		return false, err
	}

	header := http.Header{}
	header.Set(HeaderDeviceID, c.deviceID)
	header.Set(HeaderVersion, version.Version)
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, eventsDialTimeout)
	conn, resp, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{HTTPHeader: header})
	cancel()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, ErrUnauthorized
		}
		return false, fmt.Errorf("events dial: %w", err)
	}
	defer conn.CloseNow()

	slog.Info("events connected", "url", url)

	connCtx, stop := context.WithCancel(ctx)
	defer stop()
	go c.keepAlive(connCtx, conn)

	for {
		var msg syncmsg.Message
		if err := wsjson.Read(connCtx, conn, &msg); err != nil {
			return true, err
		}

		switch data := msg.Data.(type) {
		case syncmsg.System:
			slog.Debug("events system", "version", data.SystemVersion, "msg", data.Message)
		case syncmsg.Error:
			slog.Warn("events error", "code", data.Code, "msg", data.Message)
		case syncmsg.FilesChanged:
			if data.Origin != "" && data.Origin == c.deviceID {
				continue
			}
			fn(&data)
		}
	}
}

func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, eventsPingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Debug("events ping", "error", err)
				conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}
