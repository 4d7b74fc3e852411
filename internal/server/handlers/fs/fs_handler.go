package fs

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paintress/paintress-sync/internal/server/files"
	"github.com/paintress/paintress-sync/internal/server/handlers/api"
	"github.com/paintress/paintress-sync/internal/server/middlewares"
	"github.com/paintress/paintress-sync/internal/syncmsg"
	"github.com/paintress/paintress-sync/internal/version"
)

const deviceIDHeader = "X-Paintress-Device-Id"

// Publisher fans change notifications out to the clients of a workspace.
type Publisher interface {
	Publish(workspace string, msg *syncmsg.Message) int
}

type FSHandler struct {
	files  *files.Service
	events Publisher
}

func New(files *files.Service, events Publisher) *FSHandler {
	return &FSHandler{files: files, events: events}
}

func (h *FSHandler) Ping(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, &PingResponse{
		Success:   true,
		Message:   "pong",
		Workspace: middlewares.Workspace(ctx),
		Version:   version.Version,
	})
}

func (h *FSHandler) Summary(ctx *gin.Context) {
	res, err := h.files.Summary(ctx.Request.Context(), middlewares.Workspace(ctx))
	if err != nil {
		abortWithFileError(ctx, err)
		return
	}

	ctx.PureJSON(http.StatusOK, &SummaryResponse{Files: res})
}

func (h *FSHandler) Upload(ctx *gin.Context) {
	var req UploadRequest
	if err := ctx.ShouldBind(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("failed to bind form: %w", err))
		return
	}

	workspace := middlewares.Workspace(ctx)

	var (
		file *files.File
		err  error
	)
	if req.IsDeleted {
		file, err = h.files.Delete(ctx.Request.Context(), &files.DeleteParams{
			Workspace:         workspace,
			Path:              req.FilePath,
			PreviousUpdatedAt: req.PreviousUpdatedAt,
			UpdatedAt:         req.UpdatedAt,
		})
	} else {
		file, err = h.write(ctx, workspace, &req)
	}
	if err != nil {
		abortWithFileError(ctx, err)
		return
	}

	if h.events != nil {
		h.events.Publish(workspace, syncmsg.NewFilesChanged(workspace, ctx.GetHeader(deviceIDHeader), file.UpdatedAt, file.Path))
	}

	ctx.PureJSON(http.StatusOK, &UploadResponse{Success: true, File: file})
}

func (h *FSHandler) write(ctx *gin.Context, workspace string, req *UploadRequest) (*files.File, error) {
	header, err := ctx.FormFile("file")
	if err != nil {
		return nil, &api.APIError{Code: api.CodeInvalidRequest, Message: fmt.Sprintf("invalid file: %s", err)}
	}

	fd, err := header.Open()
	if err != nil {
		return nil, &api.APIError{Code: api.CodeInvalidRequest, Message: fmt.Sprintf("invalid file: %s", err)}
	}
	defer fd.Close()

	return h.files.Write(ctx.Request.Context(), &files.WriteParams{
		Workspace:         workspace,
		Path:              req.FilePath,
		Body:              fd,
		Size:              header.Size,
		PreviousUpdatedAt: req.PreviousUpdatedAt,
		UpdatedAt:         req.UpdatedAt,
	})
}

func (h *FSHandler) Download(ctx *gin.Context) {
	workspace := middlewares.Workspace(ctx)

	file, err := h.files.Get(ctx.Request.Context(), workspace, ctx.Param("fileId"))
	if err != nil {
		abortWithFileError(ctx, err)
		return
	}
	if file.Deleted {
		abortWithFileError(ctx, files.ErrFileNotFound)
		return
	}

	url, err := h.files.DownloadURL(ctx.Request.Context(), file)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeBlobGetFailed, err)
		return
	}
	if url != "" {
		ctx.Redirect(http.StatusFound, url)
		return
	}

	obj, err := h.files.Open(ctx.Request.Context(), file)
	if err != nil {
		abortWithFileError(ctx, err)
		return
	}
	defer obj.Body.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name()})
	if disposition == "" {
		disposition = "attachment"
	}

	ctx.DataFromReader(http.StatusOK, obj.Size, "application/octet-stream", obj.Body, map[string]string{
		"Content-Disposition":    disposition,
		"X-Paintress-Updated-At": fmt.Sprintf("%d", file.UpdatedAt),
	})
}

func abortWithFileError(ctx *gin.Context, err error) {
	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		api.AbortWithError(ctx, http.StatusBadRequest, apiErr.Code, errors.New(apiErr.Message))
	case errors.Is(err, files.ErrFileConflict):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeFileConflict, err)
	case errors.Is(err, files.ErrFileNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeFileNotFound, err)
	case errors.Is(err, files.ErrInvalidPath):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeFileInvalidPath, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
