package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/componentmesh/core"
)

// SequentialIDs returns a deterministic core.IDGenerator producing
// prefix-1, prefix-2, ... It is safe for concurrent use.
func SequentialIDs(prefix string) core.IDGenerator {
	var n atomic.Uint64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
