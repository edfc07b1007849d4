package deeptorch

import (
	"fmt"
)

// String offers a universal method of gaining information about a Node without printing all of its
// fields. String returns the name of the Node's Layer, quoted. For the input Node of a Graph it
// returns:
//	<Is Input, graph: %s>
// Finally, if given a Node that is nil, String will return:
//	<nil>
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	} else if n.IsInput() {
		return fmt.Sprintf("<Is Input, graph: %s>", n.host.name)
	}

	return "\"" + n.layer.Name() + "\""
}

// ID returns the position of the Node in its Graph. The input Node always has ID 0.
func (n *Node) ID() int {
	return n.id
}

// IsInput returns whether or not the Node is the input Node of its Graph.
func (n *Node) IsInput() bool {
	return n.layer == nil
}

// IsOutput returns whether or not the Node is one of the outputs of its Graph.
func (n *Node) IsOutput() bool {
	return n.isOutput
}

// Layer returns the Layer that the Node wraps. This is nil for input Nodes.
func (n *Node) Layer() Layer {
	return n.layer
}

// Size returns the number of values the Node outputs.
func (n *Node) Size() int {
	if n.IsInput() {
		return len(n.deltas)
	}

	return n.layer.NumOutputs()
}

// Values returns the current output values of the Node.
func (n *Node) Values() []float64 {
	if n.IsInput() {
		return n.values
	}

	return n.layer.Outputs()
}

// Deltas returns the gradient of the loss with respect to the values of the Node, as accumulated
// by the most recent backward pass of its Graph.
func (n *Node) Deltas() []float64 {
	return n.deltas
}

// Inputs returns the Nodes that feed the Node, in order.
func (n *Node) Inputs() []*Node {
	if n.inputs == nil {
		return nil
	}

	return n.inputs.nodes
}

// Returns the values given to the Layer of the Node
func (n *Node) inputValues() []float64 {
	return n.inputs.getValues(n.inbuf)
}
