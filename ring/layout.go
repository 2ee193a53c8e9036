// Package ring implements the Ring Transport (C1): a single-producer
// (guest) / single-consumer (host) shared-memory byte queue with
// wrap-around, synchronized via acquire/release cursor words
// (SPEC_FULL.md §4.1). The shared-memory struct shape is grounded on the
// teacher's vhostuser virtqueue (vhostuser/types.go's Ring{Desc,Avail,Used}
// and device.go's region bounds checking), adapted from a descriptor-ring
// transport to the bit-exact cyclic byte-buffer layout SPEC_FULL.md §6
// specifies.
package ring

import (
	"fmt"
	"math/bits"
)

// Layout describes the four disjoint sub-regions of a shared-memory
// region, at caller-supplied byte offsets (SPEC_FULL.md §6).
type Layout struct {
	Shared []byte

	HeadOffset   uint32
	TailOffset   uint32
	StatusOffset uint32

	BufferOffset uint32
	BufferSize   uint32 // must be a power of two

	ExtraOffset uint32
	ExtraSize   uint32 // 0 if no extra region
}

// region is a half-open byte range [Start, End) used for disjointness
// checks.
type region struct {
	name       string
	start, end uint64
}

func (r region) overlaps(o region) bool {
	return r.start < o.end && o.start < r.end
}

// validate checks the four sub-regions against SPEC_FULL.md §4.1's
// Create contract: buffer size is a non-zero power of two, all
// sub-regions fit within the declared shared-memory size, and they are
// pairwise disjoint.
func (l Layout) validate() error {
	if l.BufferSize == 0 || bits.OnesCount32(l.BufferSize) != 1 {
		return fmt.Errorf("ring: buffer size %d is not a non-zero power of two", l.BufferSize)
	}

	total := uint64(len(l.Shared))
	regions := []region{
		{"head", uint64(l.HeadOffset), uint64(l.HeadOffset) + 4},
		{"tail", uint64(l.TailOffset), uint64(l.TailOffset) + 4},
		{"status", uint64(l.StatusOffset), uint64(l.StatusOffset) + 4},
		{"buffer", uint64(l.BufferOffset), uint64(l.BufferOffset) + uint64(l.BufferSize)},
	}
	if l.ExtraSize > 0 {
		regions = append(regions, region{"extra", uint64(l.ExtraOffset), uint64(l.ExtraOffset) + uint64(l.ExtraSize)})
	}

	for _, r := range regions {
		if r.end < r.start || r.end > total {
			return fmt.Errorf("ring: region %q [%d,%d) does not fit in %d-byte shared memory", r.name, r.start, r.end, total)
		}
	}
	for i := range regions {
		for j := i + 1; j < len(regions); j++ {
			if regions[i].overlaps(regions[j]) {
				return fmt.Errorf("ring: region %q overlaps region %q", regions[i].name, regions[j].name)
			}
		}
	}
	return nil
}
