package remotefs

import "github.com/paintress/paintress-sync/internal/syncer"

const (
	v1Ping     = "/api/v1/ping"
	v1Summary  = "/api/v1/fs/summary"
	v1Upload   = "/api/v1/fs"
	v1Download = "/api/v1/fs/file/{fileId}"
	v1Events   = "/api/v1/events"

	HeaderDeviceID = "X-Paintress-Device-Id"
	HeaderVersion  = "X-Paintress-Version"
)

// RemoteFile is a record of the server file table.
type RemoteFile struct {
	FileID    string `json:"file_id"`
	Path      string `json:"file_path"`
	Size      int64  `json:"file_size"`
	Hash      string `json:"blob_hash"`
	Deleted   bool   `json:"deleted"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt int64  `json:"deleted_at"`
}

func (f *RemoteFile) Metadata() syncer.FileMetadata {
	return syncer.FileMetadata{
		Path:      f.Path,
		Size:      f.Size,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		DeletedAt: f.DeletedAt,
		Deleted:   f.Deleted,
	}
}

type SummaryResponse struct {
	Files []*RemoteFile `json:"files"`
}

type UploadResponse struct {
	Success bool        `json:"success"`
	File    *RemoteFile `json:"file"`
}

type PingResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Workspace string `json:"workspace"`
	Version   string `json:"version"`
}
