package syncmsg

import "fmt"

type MessageType uint16

const (
	MsgSystem MessageType = iota
	MsgError
	MsgFilesChanged
)

func (t MessageType) String() string {
	switch t {
	case MsgSystem:
		return "SYSTEM"
	case MsgError:
		return "ERROR"
	case MsgFilesChanged:
		return "FILES_CHANGED"
	default:
		return fmt.Sprintf("???(%d)", t)
	}
}
