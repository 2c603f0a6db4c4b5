// Package gsid converts between raw player ids and the 10-character Game
// Sync IDs shown to players. An id packs a 32-bit pid and its CRC-16
// checksum into 5-bit chartable indices, least significant bits first.
package gsid

import (
	"math"
	"strings"

	"github.com/dreamlink/dreamlinkd/internal/crypto"
)

const chartable = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length of every well-formed Game Sync ID.
const Length = 10

// Stringify encodes pid as a Game Sync ID.
func Stringify(pid uint32) string {
	packed := uint64(pid) | uint64(crypto.Crc16Uint32(pid))<<32

	var b strings.Builder
	b.Grow(Length)
	for range Length {
		b.WriteByte(chartable[packed&0x1F])
		packed >>= 5
	}
	return b.String()
}

// Valid reports whether id is a well-formed Game Sync ID with a matching
// checksum. The pid space is capped at 31 bits, so ids encoding a larger
// value are rejected even when the checksum holds.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}

	var packed uint64
	for i := Length - 1; i >= 0; i-- {
		idx := strings.IndexByte(chartable, id[i])
		if idx < 0 {
			return false
		}
		packed = packed<<5 | uint64(idx)
	}

	pid := uint32(packed)
	if pid > math.MaxInt32 {
		return false
	}
	// The checksum field spans the full remaining 18 bits, so stray high
	// bits invalidate the id as well.
	return uint32(packed>>32) == uint32(crypto.Crc16Uint32(pid))
}
