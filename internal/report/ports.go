package report

import (
	"context"
	"time"
)

// Entry is one row in the refresh log: which analysis was refreshed, why,
// and how it went.
type Entry struct {
	Timestamp time.Time
	Kind      string
	Reason    string
	Outcome   string
	Bytes     int
}

// Writer is the port for outbound refresh-log adapters.
type Writer interface {
	AppendEntry(ctx context.Context, e Entry) (rowRef string, err error)
}
