package battlefield

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Digest hashes the cached pose of every physical entity in entity order.
// Two battlefields fed the same commands report the same digest after
// every tick.
func (c *Controller) Digest() uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 32)
	for _, id := range c.entities.IDs() {
		pe, _ := c.entities.Get(id)
		buf = buf[:0]
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(pe.Pose.X))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(pe.Pose.Y))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(pe.Pose.Angle))
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}
