package lending

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so positions and events can be range-scanned
// independently; event keys embed a zero-padded sequence for lexicographic
// (and therefore chronological) ordering.
const (
	prefixPosition = "pos:"
	prefixEvent    = "evt:"

	keyTotals = "total:counters"
)

// positionKey returns the key for a position.
// Format: "pos:{address}"
func positionKey(addr common.Address) []byte {
	return []byte(prefixPosition + addr.Hex())
}

// eventKey returns the key for an event.
// Format: "evt:{seq}" with a 20-digit zero-padded sequence.
func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixEvent, seq))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
