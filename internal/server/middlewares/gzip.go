package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	// file downloads are returned as stored, the events socket is not http
	excludedPaths = []string{
		"/api/v1/fs/file",
		"/api/v1/events",
	}
	excludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".ico",
		".zip", ".tar", ".gz", ".bz2", ".rar", ".7z",
	}
)

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedExtensions(excludedExtensions),
	)
}
