package registry

import (
	"encoding/binary"
	"fmt"
)

// Packer packs argument values into a kernel's argument buffer, mirroring
// the byte layout RegisterByName computed: each value is placed at its
// parameter's rounded offset, in declaration order. Packing is
// deterministic — the same argument list always yields the same byte
// layout for a given KernelInfo.
type Packer struct {
	info *KernelInfo
}

// NewPacker returns a packer bound to info's argument layout.
func NewPacker(info *KernelInfo) *Packer {
	return &Packer{info: info}
}

// Pack writes values (one per descriptor in info.Args, same order) into a
// freshly sized buffer and returns it. Each value must already be exactly
// its descriptor's Size in bytes — the packer does no type conversion, it
// only places bytes at the right offsets.
func (p *Packer) Pack(values [][]byte) ([]byte, error) {
	if len(values) != len(p.info.Args) {
		return nil, fmt.Errorf("registry: kernel %q expects %d arguments, got %d", p.info.Name, len(p.info.Args), len(values))
	}

	buf := make([]byte, p.info.ArgBufSize)
	offset := 0
	for i, desc := range p.info.Args {
		offset = roundUp(offset, desc.Align)
		if len(values[i]) != desc.Size {
			return nil, fmt.Errorf("registry: kernel %q argument %d has size %d, expected %d", p.info.Name, i, len(values[i]), desc.Size)
		}
		copy(buf[offset:offset+desc.Size], values[i])
		offset += desc.Size
	}
	return buf, nil
}

// PackUint64 is a convenience wrapper for the common case of a single
// 8-byte pointer or scalar argument appended to a growing value list.
func PackUint64(values [][]byte, v uint64) [][]byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return append(values, b)
}

// PackUint32 appends a 4-byte little-endian scalar argument.
func PackUint32(values [][]byte, v uint32) [][]byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return append(values, b)
}
