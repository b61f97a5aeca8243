package util

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NextULID returns a ULID greater than every ULID this process generated
// before it. Request IDs and grid load tickets share this one source.
func NextULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// NewULID generates a new ULID string.
// ULIDs are time-sortable, so request IDs in the logs sort by send time.
func NewULID() string {
	return NextULID().String()
}
