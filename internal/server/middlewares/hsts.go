package middlewares

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// HSTS sets the strict transport headers. It only redirects to https when the
// server terminates TLS itself.
func HSTS(sslRedirect bool) gin.HandlerFunc {
	return secure.New(secure.Config{
		SSLRedirect:          sslRedirect,
		IsDevelopment:        false,
		STSSeconds:           315360000,
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IENoOpen:             true,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
	})
}
