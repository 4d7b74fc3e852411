package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paintress/paintress-sync/internal/server/auth"
	"github.com/paintress/paintress-sync/internal/server/handlers/api"
)

const (
	bearerPrefix = "Bearer "
	authHeader   = "Authorization"
	// WorkspaceKey holds the workspace id of the request in the gin context.
	WorkspaceKey = "workspace"
)

// JWTAuth validates the bearer token and scopes the request to the workspace in
// its subject. With auth disabled every request uses the default workspace.
func JWTAuth(authService *auth.AuthService) gin.HandlerFunc {
	if !authService.IsEnabled() {
		workspace := authService.DefaultWorkspace()
		slog.Info("auth middleware disabled", "workspace", workspace)
		return func(ctx *gin.Context) {
			ctx.Set(WorkspaceKey, workspace)
			ctx.Next()
		}
	}
	slog.Info("auth middleware enabled")
	return func(ctx *gin.Context) {
		tokenString, err := bearerToken(ctx)
		if err != nil {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials, err)
			return
		}

		claims, err := authService.ValidateAccessToken(ctx, tokenString)
		if err != nil {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeAuthInvalidCredentials, err)
			return
		}

		ctx.Set(WorkspaceKey, claims.Workspace())
		ctx.Next()
	}
}

func bearerToken(ctx *gin.Context) (string, error) {
	value := ctx.GetHeader(authHeader)
	if value == "" {
		// browsers cannot set headers on websocket upgrades
		if token := ctx.Query("token"); token != "" && ctx.IsWebsocket() {
			return token, nil
		}
		return "", errors.New("authorization header is missing")
	}

	if !strings.HasPrefix(value, bearerPrefix) {
		return "", errors.New("authorization header format must be Bearer {token}")
	}

	token := strings.TrimPrefix(value, bearerPrefix)
	if token == "" {
		return "", errors.New("token is missing")
	}
	return token, nil
}

// Workspace returns the workspace id set by JWTAuth.
func Workspace(ctx *gin.Context) string {
	return ctx.GetString(WorkspaceKey)
}
