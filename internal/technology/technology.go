package technology

import (
	"github.com/shopspring/decimal"
)

// NodeKind tells whether a node holds real work or stands in for another technology.
type NodeKind int

const (
	KindOperation NodeKind = iota
	KindReference
)

const (
	entityTypeOperation = "operation"
	entityTypeReference = "referenceTechnology"
)

// String returns the persisted entity type of the kind.
func (k NodeKind) String() string {
	if k == KindReference {
		return entityTypeReference
	}
	return entityTypeOperation
}

// ParseNodeKind maps a persisted entity type to a NodeKind.
// Only "operation" is an operation; any other value, empty included, is a reference.
func ParseNodeKind(raw string) NodeKind {
	if raw == entityTypeOperation {
		return KindOperation
	}
	return KindReference
}

// OutputProduct is a product produced by an operation.
type OutputProduct struct {
	ProductNumber string
	Quantity      decimal.Decimal
}

// OperationNode is one operation component of a technology tree.
// Optional numeric norms are NullDecimal; Valid == false means the value is absent.
type OperationNode struct {
	ID           int64
	TechnologyID int64
	Number       string
	Kind         NodeKind
	Children     []*OperationNode

	// ReferenceTechnologyID is set on KindReference nodes only.
	ReferenceTechnologyID int64

	LaborHourlyCost    decimal.NullDecimal
	MachineHourlyCost  decimal.NullDecimal
	PieceworkCost      decimal.NullDecimal
	NumberOfOperations decimal.NullDecimal

	// Time norms in seconds.
	TPZ                  int
	TJ                   int
	TimeNextOperation    int
	ProductionInOneCycle decimal.NullDecimal

	OutputProducts []OutputProduct
}

// IsReference reports whether the node delegates to another technology tree.
func (n *OperationNode) IsReference() bool {
	return n.Kind == KindReference
}

// OutputQuantity returns the summed quantity of all output products.
func (n *OperationNode) OutputQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, p := range n.OutputProducts {
		total = total.Add(p.Quantity)
	}
	return total
}

// Source is anything that owns an operation tree a cost can be computed for.
type Source interface {
	OperationTree() *OperationNode
}

// Technology is a named technology definition with its operation tree.
type Technology struct {
	ID     int64
	Number string
	Name   string
	Root   *OperationNode
}

// OperationTree returns the root of the technology's operation components.
func (t *Technology) OperationTree() *OperationNode {
	if t == nil {
		return nil
	}
	return t.Root
}

// Order is a production order; its operation tree is materialised from its technology.
type Order struct {
	ID              int64
	Number          string
	TechnologyID    int64
	PlannedQuantity decimal.NullDecimal
	Root            *OperationNode
}

// OperationTree returns the root of the order's operation components.
func (o *Order) OperationTree() *OperationNode {
	if o == nil {
		return nil
	}
	return o.Root
}
