package domain

// GraphDefinition is the persisted form of a playlist generation graph:
// the node list with per-node configuration and the connections between
// nodes. Node keys are stable across saves; edge order per target is the
// input order.
type GraphDefinition struct {
	ID    string           `json:"id" yaml:"id"`
	Name  string           `json:"name" yaml:"name"`
	Nodes []NodeDefinition `json:"nodes" yaml:"nodes"`
	Edges []EdgeDefinition `json:"edges" yaml:"edges"`
}

// NodeDefinition describes one node. Config values are kind-specific.
type NodeDefinition struct {
	Key    string         `json:"key" yaml:"key"`
	Kind   string         `json:"kind" yaml:"kind"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// EdgeDefinition connects the output of From to an input of To.
type EdgeDefinition struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}
