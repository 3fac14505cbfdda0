package registry

import "fmt"

// Program groups every kernel recovered from one parsed ELF image under
// a single handle. A Registry's byName/byPointer indexes stay the source
// of truth for a kernel's layout; Programs is a thin grouping layer above
// them for callers that want to enumerate "every kernel this image
// shipped" rather than look one up by name.
type Program struct {
	Name    string
	kernels []*KernelInfo
}

// Kernels returns every kernel registered under this program, in
// registration order.
func (p *Program) Kernels() []*KernelInfo {
	out := make([]*KernelInfo, len(p.kernels))
	copy(out, p.kernels)
	return out
}

// Programs indexes kernels by the program (source image) they were
// parsed from. A kernel belongs to exactly one program.
type Programs struct {
	byName map[string]*Program
}

// NewPrograms returns an empty program index.
func NewPrograms() *Programs {
	return &Programs{byName: make(map[string]*Program)}
}

// Add records that info was registered as part of program. The same
// KernelInfo must not be added to two different programs.
func (p *Programs) Add(program string, info *KernelInfo) error {
	prog, ok := p.byName[program]
	if !ok {
		prog = &Program{Name: program}
		p.byName[program] = prog
	}
	for _, k := range prog.kernels {
		if k == info {
			return fmt.Errorf("registry: kernel %q already grouped under program %q", info.Name, program)
		}
	}
	prog.kernels = append(prog.kernels, info)
	return nil
}

// Lookup resolves a program by name.
func (p *Programs) Lookup(name string) (*Program, bool) {
	prog, ok := p.byName[name]
	return prog, ok
}
