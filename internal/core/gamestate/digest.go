package gamestate

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Digest returns a checksum over the drawable-relevant state of every
// entity: ids, attached kinds, animation paths, waypoint paths and facing
// angles, walked in ascending id order. Two states that simulate the same
// world hash to the same value, which makes the digest usable as a cheap
// desync check between peers and as the baseline stamped onto feed
// keyframes.
func (s *GameState) Digest() uint64 {
	d := xxhash.New()
	s.Each(func(e *GameEntity) bool {
		hashEntity(d, e)
		return true
	})
	return d.Sum64()
}

func hashEntity(d *xxhash.Digest, e *GameEntity) {
	writeU64(d, uint64(e.ID()))
	writeString(d, e.AnimationPath())

	kinds := e.Kinds()
	writeU64(d, uint64(len(kinds)))
	for _, k := range kinds {
		_, _ = d.Write([]byte{byte(k)})
	}

	pos, ok := e.Positional()
	if !ok {
		return
	}
	path := pos.Positions()
	writeU64(d, uint64(len(path)))
	for _, p := range path {
		writeF64(d, p.X)
		writeF64(d, p.Y)
		writeF64(d, p.Z)
	}
	angles := pos.Angles()
	writeU64(d, uint64(len(angles)))
	for _, a := range angles {
		writeF64(d, a)
	}
}

func writeU64(d *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = d.Write(buf[:])
}

func writeF64(d *xxhash.Digest, v float64) {
	writeU64(d, math.Float64bits(v))
}

func writeString(d *xxhash.Digest, s string) {
	writeU64(d, uint64(len(s)))
	_, _ = d.WriteString(s)
}
