package scheduler

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"
)

// SequentialIDs returns an IDGenerator that yields 00000000-0000-0000-0000-000000000001,
// ...-000000000002 and so on. It is meant for tests and reproducible output;
// ids are only unique within the generator.
func SequentialIDs() IDGenerator {
	var n atomic.Uint64
	return func() ID {
		var id uuid.UUID
		binary.BigEndian.PutUint64(id[8:], n.Add(1))
		return id
	}
}
