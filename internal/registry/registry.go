// Package registry maps kernel names and user function pointers to the
// resolved code-object address and argument layout an executor needs to
// launch them. Pointer registration resolves through the symbol-table
// data codeimage extracts; argument layouts are computed round-up-then-add
// over the registered descriptor list.
package registry

import "fmt"

// ArgDescriptor describes one kernel parameter's footprint in the packed
// argument buffer.
type ArgDescriptor struct {
	Size  int
	Align int
}

// KernelInfo is everything the packet factory needs to launch a
// registered kernel: its resolved code-object address, the mangled name
// the driver expects, and the byte layout of its argument buffer.
type KernelInfo struct {
	Name       string
	CodeAddr   uint64
	Args       []ArgDescriptor
	ArgBufSize int
}

// CodeObjectSuffix is appended to a kernel's demangled name before the
// driver-facing registration, per the device code-object naming
// convention.
const CodeObjectSuffix = ".kd"

// Registry holds every kernel known to the engine, indexed both by its
// registered name and by the user-supplied function pointer used to
// register it.
type Registry struct {
	byName    map[string]*KernelInfo
	byPointer map[uintptr]*KernelInfo
	resolve   func(addr uint64) (string, bool) // stub address -> kernel name
}

// New creates an empty registry. resolve is the symbol-resolution map
// built from the binary image (codeimage.Image.Stubs, adapted to this
// signature by the caller); it is used only by RegisterByPointer.
func New(resolve func(addr uint64) (string, bool)) *Registry {
	return &Registry{
		byName:    make(map[string]*KernelInfo),
		byPointer: make(map[uintptr]*KernelInfo),
		resolve:   resolve,
	}
}

// RegisterByName computes the argument-buffer size from args (each
// parameter rounds the running offset up to its own alignment, then adds
// its size) and stores the resulting KernelInfo under name.
func (r *Registry) RegisterByName(name string, codeAddr uint64, args []ArgDescriptor) (*KernelInfo, error) {
	if _, exists := r.byName[name]; exists {
		return nil, fmt.Errorf("registry: kernel %q already registered", name)
	}

	size := 0
	for _, a := range args {
		if a.Align <= 0 {
			return nil, fmt.Errorf("registry: kernel %q has a parameter with non-positive alignment %d", name, a.Align)
		}
		size = roundUp(size, a.Align)
		size += a.Size
	}

	info := &KernelInfo{Name: name, CodeAddr: codeAddr, Args: args, ArgBufSize: size}
	r.byName[name] = info
	return info, nil
}

// RegisterByPointer resolves fnPtr's stub address to a kernel name via the
// symbol-resolution map, appends CodeObjectSuffix, and registers under
// that name. fnPtr is used only for the symbol lookup and as the
// pointer-index key; the kernel is registered at codeAddr.
func (r *Registry) RegisterByPointer(fnPtr uintptr, codeAddr uint64, args []ArgDescriptor) (*KernelInfo, error) {
	if info, ok := r.byPointer[fnPtr]; ok {
		return info, nil
	}

	name, ok := r.resolve(uint64(fnPtr))
	if !ok {
		return nil, fmt.Errorf("registry: could not resolve function pointer %#x to a kernel symbol", fnPtr)
	}
	name += CodeObjectSuffix

	info, err := r.RegisterByName(name, codeAddr, args)
	if err != nil {
		return nil, err
	}
	r.byPointer[fnPtr] = info
	return info, nil
}

// Lookup resolves a registered kernel by name.
func (r *Registry) Lookup(name string) (*KernelInfo, bool) {
	info, ok := r.byName[name]
	return info, ok
}

// LookupByPointer resolves a kernel previously registered via
// RegisterByPointer.
func (r *Registry) LookupByPointer(fnPtr uintptr) (*KernelInfo, bool) {
	info, ok := r.byPointer[fnPtr]
	return info, ok
}

func roundUp(size, align int) int {
	rem := size % align
	if rem == 0 {
		return size
	}
	return size + (align - rem)
}
