package codeimage

import (
	"debug/elf"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// HipFatbinSection is the well-known ELF section name carrying embedded
// offload bundles in a HIP-style host executable.
const HipFatbinSection = ".hip_fatbin"

// Image is the parsed result of the host executable's own binary: the
// GPU-family code blobs found in its offload section and the map from
// device-stub address to the deployed kernel's mangled symbol.
type Image struct {
	Bundles []Bundle
	Stubs   map[uint64]string // code address -> kernel mangled symbol
}

var (
	once      sync.Once
	flightGrp singleflight.Group
	cachedImg *Image
	cachedErr error
)

// Self lazily parses the current process's own executable exactly once.
// A sync.Once gates the work, so concurrent callers block until the one
// parse finishes; the parse runs inside a singleflight group keyed "self".
func Self() (*Image, error) {
	once.Do(func() {
		v, err, _ := flightGrp.Do("self", func() (interface{}, error) {
			return parseSelf()
		})
		if err != nil {
			cachedErr = err
			return
		}
		cachedImg = v.(*Image)
	})
	return cachedImg, cachedErr
}

func parseSelf() (*Image, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("codeimage: resolve own executable: %w", err)
	}

	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codeimage: open %s: %w", path, err)
	}
	defer f.Close()

	return ParseFile(f, 0)
}

// ParseFile extracts the offload bundles and device-stub map from an
// already-open ELF file. loadOffset is added to every resolved stub
// address (0 for a non-PIE executable).
func ParseFile(f *elf.File, loadOffset uint64) (*Image, error) {
	section := f.Section(HipFatbinSection)
	if section == nil {
		return nil, fmt.Errorf("codeimage: no %s section in executable", HipFatbinSection)
	}
	data, err := section.Data()
	if err != nil {
		return nil, fmt.Errorf("codeimage: read %s: %w", HipFatbinSection, err)
	}

	bundles, err := ParseBundles(data)
	if err != nil {
		return nil, err
	}

	stubs, err := ParseDeviceStubs(f, loadOffset)
	if err != nil {
		return nil, err
	}

	return &Image{Bundles: bundles, Stubs: stubs}, nil
}
