package specs

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Id prefixes for generated records.
const (
	StoryIDPrefix = "us"
	TaskIDPrefix  = "task"
)

// IDFunc returns a new id for the given prefix.
type IDFunc func(prefix string) string

// NewID returns "<prefix>-<uuid>". Random UUIDs keep ids unique across
// rapid successive generations, which a timestamp counter cannot.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// NewSpecID returns a ULID so specification ids sort by creation time.
func NewSpecID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
