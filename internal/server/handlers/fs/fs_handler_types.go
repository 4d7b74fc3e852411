package fs

import "github.com/paintress/paintress-sync/internal/server/files"

// UploadRequest is the multipart form of POST /fs. The file part is read
// separately and is absent for deletions.
type UploadRequest struct {
	FilePath          string `form:"filePath" binding:"required"`
	IsDeleted         bool   `form:"isDeleted"`
	PreviousUpdatedAt int64  `form:"previousUpdatedAt"`
	UpdatedAt         int64  `form:"updatedAt" binding:"required,gt=0"`
}

type UploadResponse struct {
	Success bool        `json:"success"`
	File    *files.File `json:"file"`
}

type SummaryResponse struct {
	Files []*files.File `json:"files"`
}

type PingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Workspace string `json:"workspace"`
	Version   string `json:"version"`
}
