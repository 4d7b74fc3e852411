package server

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/paintress/paintress-sync/internal/server/auth"
	"github.com/paintress/paintress-sync/internal/server/blob"
	"github.com/paintress/paintress-sync/internal/server/files"
)

type Services struct {
	Files *files.Service
	Auth  *auth.AuthService
}

func NewServices(config *Config, db *sqlx.DB) (*Services, error) {
	backend, err := blob.NewBackend(&config.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob backend: %w", err)
	}

	index, err := files.NewIndex(db)
	if err != nil {
		return nil, err
	}

	presign := config.Blob.Backend == blob.BackendS3 && config.Blob.S3.Presign
	filesSvc := files.NewService(index, backend, files.WithPresign(presign))

	return &Services{
		Files: filesSvc,
		Auth:  auth.NewAuthService(&config.Auth),
	}, nil
}
