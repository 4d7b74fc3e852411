package syncmsg

// FilesChanged tells clients of a workspace that the remote moved on.
// Paths is informational; clients run a full pass either way.
type FilesChanged struct {
	Workspace string   `json:"ws"`
	Paths     []string `json:"pths,omitempty"`
	UpdatedAt int64    `json:"uat"`
	// Origin is the device id of the writer, so it can skip its own echoes.
	Origin string `json:"org,omitempty"`
}

func NewFilesChanged(workspace, origin string, updatedAt int64, paths ...string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgFilesChanged,
		Data: &FilesChanged{
			Workspace: workspace,
			Paths:     paths,
			UpdatedAt: updatedAt,
			Origin:    origin,
		},
	}
}
