package dagee

// AgentKind distinguishes the two device classes a driver can expose.
type AgentKind int

const (
	AgentKindCPU AgentKind = iota
	AgentKindGPU
)

func (k AgentKind) String() string {
	if k == AgentKindGPU {
		return "gpu"
	}
	return "cpu"
}

// Agent identifies one compute device: its driver-facing index, a
// human-readable name, its device class, and how deep its hardware
// queues can be.
type Agent struct {
	ID           int
	Name         string
	Kind         AgentKind
	MaxQueueSize uint64
}

// AgentEnumerator is implemented by drivers that can describe the
// devices behind them. A driver that does not is treated as exposing a
// single anonymous GPU agent.
type AgentEnumerator interface {
	Agents() []Agent
}

// AgentSelector picks which enumerated agent an engine targets. The
// engine dispatches to exactly one agent; a multi-agent policy plugs in
// here without changing any other call site.
type AgentSelector func(agents []Agent) (Agent, error)

// DefaultAgentSelector returns the first GPU agent, falling back to the
// first agent of any kind.
func DefaultAgentSelector(agents []Agent) (Agent, error) {
	if len(agents) == 0 {
		return Agent{}, NewError("dagee.selectAgent", CategoryConfiguration, "driver enumerated no agents")
	}
	for _, a := range agents {
		if a.Kind == AgentKindGPU {
			return a, nil
		}
	}
	return agents[0], nil
}

func enumerateAgents(params EngineParams) []Agent {
	if e, ok := params.Driver.(AgentEnumerator); ok {
		return e.Agents()
	}
	return []Agent{{
		ID:           0,
		Name:         "agent0",
		Kind:         AgentKindGPU,
		MaxQueueSize: uint64(params.Config.QueueCapacity),
	}}
}
