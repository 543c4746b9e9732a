package hub

import (
	"fmt"

	"github.com/shared-sketch/backend/internal/model"
)

// ClientID identifies one live connection: the remote address plus a process
// wide sequence number that tells apart connections reusing an address.
type ClientID struct {
	Addr string
	Seq  uint64
}

// String returns "addr#seq".
func (id ClientID) String() string {
	return fmt.Sprintf("%s#%d", id.Addr, id.Seq)
}

// Message is a request sent to the hub or a notification sent by the hub to a
// client. Only NewLine and Clear are ever delivered to clients.
type Message interface {
	hubMessage()
}

// NewClient asks the hub to replay the history to Out and register the client.
// Gone must be closed by the client when it stops receiving.
type NewClient struct {
	ID   ClientID
	Out  chan<- Message
	Gone <-chan struct{}
}

// DeleteClient asks the hub to forget a client. Unknown IDs are ignored.
type DeleteClient struct {
	ID ClientID
}

// NewLine commits a stroke (request) or announces a committed stroke
// (notification).
type NewLine struct {
	Stroke model.Stroke
	From   ClientID
}

// Clear empties the canvas (request) or announces that it was emptied
// (notification).
type Clear struct {
	From ClientID
}

type snapshotRequest struct {
	reply chan<- []model.Stroke
}

type statsRequest struct {
	reply chan<- Stats
}

func (NewClient) hubMessage()       {}
func (DeleteClient) hubMessage()    {}
func (NewLine) hubMessage()         {}
func (Clear) hubMessage()           {}
func (snapshotRequest) hubMessage() {}
func (statsRequest) hubMessage()    {}

// Stats is a point-in-time view of the hub's counters.
type Stats struct {
	Clients   int    `json:"clients"`
	Strokes   int    `json:"strokes"`
	Points    int    `json:"points"`
	Requests  uint64 `json:"requests"`
	Delivered uint64 `json:"delivered"`
	Pruned    uint64 `json:"pruned"`
	Clears    uint64 `json:"clears"`
}

// Observer is told about canvas mutations from inside the hub loop. Calls must
// not block.
type Observer interface {
	StrokeCommitted(from ClientID, s model.Stroke)
	CanvasCleared(from ClientID)
}
