package remotefs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
	"github.com/paintress/paintress-sync/internal/syncer"
)

var (
	ErrNoServerURL  = errors.New("remotefs: server url missing")
	ErrUnauthorized = errors.New("remotefs: unauthorized")
)

const (
	CodeFileConflict           = "E_FILE_CONFLICT"
	CodeFileNotFound           = "E_FILE_NOT_FOUND"
	CodeAuthInvalidCredentials = "E_AUTH_INVALID_CREDENTIALS"
	CodeRateLimited            = "E_RATE_LIMITED"
)

// APIError is the error body returned by the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s - %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the server error onto the replica error taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == CodeFileConflict || e.Status == http.StatusConflict:
		return syncer.ErrConflict
	case e.Code == CodeFileNotFound || e.Status == http.StatusNotFound:
		return syncer.ErrNotFound
	case e.Code == CodeAuthInvalidCredentials || e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Code == CodeRateLimited || e.Status >= http.StatusInternalServerError:
		return syncer.ErrTransport
	}
	return nil
}

func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: %w: %w", operation, syncer.ErrTransport, requestErr)
	}

	if resp.IsErrorState() {
		apiErr, ok := resp.ErrorResult().(*APIError)
		if !ok || apiErr == nil || apiErr.Code == "" {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode)}
		}
		apiErr.Status = resp.StatusCode
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	return nil
}
