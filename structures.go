package deeptorch

// Graph is a directed acyclic set of Layers, connected so that each Node reads the concatenated
// outputs of the Nodes that feed it. The same Layer objects (and so the same ParameterGroups) are
// typically shared between several Graphs, each being a different view of one model.
//
// A Graph is built by calls to Add, and is finalized by Build. After Build, the only thing that
// may change is the partial backprop flag of its Layers.
//
// Graph implements Layer, so that a Graph can be nested inside another.
type Graph struct {
	name string

	// the virtual Node standing in for the raw input to the Graph
	input *Node

	// all non-input Nodes, in the order they were added. Because inputs must exist before being
	// given to Add, this is also a valid evaluation order.
	nodes []*Node

	outputs *nodeGroup

	// every Layer in the Graph, including those in nested Graphs
	layers map[Layer]bool

	// the concatenated values of the output Nodes
	values []float64

	// the gradient of the loss with respect to the input
	beta []float64

	params []*ParameterGroup

	partial bool

	err error

	stat status
}

// nodeGroup is an ordered set of Nodes whose values are treated as one concatenated vector. Both
// the inputs to a Node and the outputs of a Graph are nodeGroups.
type nodeGroup struct {
	nodes []*Node

	// the cumulative sizes of the members of the group, such that the values of nodes[i] are at
	// [sumVals[i] - nodes[i].Size(), sumVals[i])
	sumVals segments
}

// Node is a single position in a Graph, wrapping a Layer and its connections.
type Node struct {
	host  *Graph
	id    int
	layer Layer

	inputs *nodeGroup

	// the Nodes that take this one as input
	consumers []*Node

	// only used by the input Node, set at the start of each pass
	values []float64

	// used to concatenate the inputs when there is more than one
	inbuf []float64

	// the gradient of the loss with respect to the values of the Node. For the input Node, this
	// is the same slice as the beta of the host Graph.
	deltas []float64

	isOutput bool

	// whether or not the Node receives gradient in the current backward pass
	live bool

	// general marker used by graph traversals
	completed bool
}
