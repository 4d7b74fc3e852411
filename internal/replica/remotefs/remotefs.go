// Package remotefs is the replica served by paintress-server over REST.
package remotefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"github.com/paintress/paintress-sync/internal/syncer"
	"github.com/paintress/paintress-sync/internal/utils"
	"github.com/paintress/paintress-sync/internal/version"
)

const (
	defaultTimeout = 60 * time.Second
	retryCount     = 3
)

type Config struct {
	ServerURL string
	Token     string
	DeviceID  string
	Timeout   time.Duration
}

// Client talks to the file API of one workspace. The workspace is implied by
// the token.
type Client struct {
	client    *req.Client
	serverURL string
	token     string
	deviceID  string
	now       func() int64

	// path -> file id, refreshed by every summary
	mu  sync.RWMutex
	ids map[string]string
}

var _ syncer.FileSystem = (*Client)(nil)

func New(cfg *Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, ErrNoServerURL
	}
	serverURL, err := utils.NormalizeURL(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = utils.HWID
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := req.C().
		SetBaseURL(serverURL).
		SetTimeout(timeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonHeader(HeaderDeviceID, deviceID).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
	if cfg.Token != "" {
		client.SetCommonBearerAuthToken(cfg.Token)
	}

	return &Client{
		client:    client,
		serverURL: serverURL,
		token:     cfg.Token,
		deviceID:  deviceID,
		now:       func() int64 { return time.Now().UnixMilli() },
		ids:       make(map[string]string),
	}, nil
}

func (c *Client) ServerURL() string {
	return c.serverURL
}

func (c *Client) DeviceID() string {
	return c.deviceID
}

func (c *Client) Close() {
	c.client.GetTransport().CloseIdleConnections()
}

// Ping checks connectivity and the token.
func (c *Client) Ping(ctx context.Context) (apiResp *PingResponse, err error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetSuccessResult(&apiResp).
		Get(v1Ping)

	if err := handleAPIError(resp, err, "ping"); err != nil {
		return nil, err
	}
	return apiResp, nil
}

// Summary lists every record of the workspace, tombstones included.
func (c *Client) Summary(ctx context.Context) ([]*RemoteFile, error) {
	var apiResp SummaryResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(retryCount).
		SetSuccessResult(&apiResp).
		Get(v1Summary)

	if err := handleAPIError(resp, err, "summary"); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(apiResp.Files))
	for _, f := range apiResp.Files {
		ids[f.Path] = f.FileID
	}
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()

	return apiResp.Files, nil
}

func (c *Client) GetFiles(ctx context.Context) ([]syncer.FileMetadata, error) {
	remote, err := c.Summary(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]syncer.FileMetadata, 0, len(remote))
	for _, f := range remote {
		files = append(files, f.Metadata())
	}
	return files, nil
}

func (c *Client) fileID(ctx context.Context, path string) (string, error) {
	c.mu.RLock()
	id, ok := c.ids[path]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	remote, err := c.Summary(ctx)
	if err != nil {
		return "", err
	}
	for _, f := range remote {
		if f.Path == path && !f.Deleted {
			return f.FileID, nil
		}
	}
	return "", fmt.Errorf("%s: %w", path, syncer.ErrNotFound)
}

func (c *Client) GetFileContent(ctx context.Context, path string) ([]byte, error) {
	id, err := c.fileID(ctx, path)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetRetryCount(retryCount).
		SetPathParam("fileId", id).
		Get(v1Download)

	if err := handleAPIError(resp, err, "download "+path); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

func (c *Client) Update(ctx context.Context, path string, content []byte, previousUpdatedAt, newUpdatedAt int64) error {
	var apiResp UploadResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"filePath":          path,
			"isDeleted":         "false",
			"previousUpdatedAt": strconv.FormatInt(previousUpdatedAt, 10),
			"updatedAt":         strconv.FormatInt(newUpdatedAt, 10),
		}).
		SetFileBytes("file", "blob", content).
		SetSuccessResult(&apiResp).
		Post(v1Upload)

	if err := handleAPIError(resp, err, "upload "+path); err != nil {
		return err
	}

	if apiResp.File != nil {
		c.mu.Lock()
		c.ids[path] = apiResp.File.FileID
		c.mu.Unlock()
	}
	return nil
}

func (c *Client) Remove(ctx context.Context, path string, previousUpdatedAt int64) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"filePath":          path,
			"isDeleted":         "true",
			"previousUpdatedAt": strconv.FormatInt(previousUpdatedAt, 10),
			"updatedAt":         strconv.FormatInt(c.now(), 10),
		}).
		// the server only parses multipart bodies for uploads
		EnableForceMultipart().
		Post(v1Upload)

	err = handleAPIError(resp, err, "delete "+path)
	if errors.Is(err, syncer.ErrNotFound) {
		slog.Debug("remotefs delete: already gone", "path", path)
		return nil
	}
	return err
}

// Prune is not offered by the server; tombstones stay forever.
func (c *Client) Prune(context.Context, string) error {
	return syncer.ErrUnsupported
}
