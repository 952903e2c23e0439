package costing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/costnorms/internal/technology"
)

// maxDepth bounds the recursion. Acyclic trees deeper than this are rejected
// with ErrDepthExceeded.
const maxDepth = 4096

// NodeCost returns the own contribution of an operation node.
type NodeCost func(ctx context.Context, node *technology.OperationNode) (decimal.Decimal, error)

// Walker folds a technology tree along its most expensive path.
// Reference nodes are replaced by the root of the technology they point to.
type Walker struct {
	resolver technology.Resolver
	cost     NodeCost
}

// NewWalker returns a Walker applying cost to every operation node.
func NewWalker(resolver technology.Resolver, cost NodeCost) *Walker {
	return &Walker{resolver: resolver, cost: cost}
}

// treeKey identifies a technology tree on the current recursion path.
// Trees without a technology id are identified by their root node.
type treeKey struct {
	technologyID int64
	root         *technology.OperationNode
}

func keyOf(technologyID int64, root *technology.OperationNode) treeKey {
	if technologyID != 0 {
		return treeKey{technologyID: technologyID}
	}
	return treeKey{root: root}
}

// walkState holds what is on the current recursion path: the trees entered
// through references and the nodes descended through.
type walkState struct {
	trees map[treeKey]struct{}
	nodes map[*technology.OperationNode]struct{}
}

// Walk returns max(walk(child)) + cost(node) for root, with the child maximum
// starting at zero.
func (w *Walker) Walk(ctx context.Context, root *technology.OperationNode) (decimal.Decimal, error) {
	st := &walkState{
		trees: map[treeKey]struct{}{
			keyOf(root.TechnologyID, root): {},
		},
		nodes: map[*technology.OperationNode]struct{}{},
	}
	return w.walk(ctx, root, st, 0)
}

func (w *Walker) walk(ctx context.Context, node *technology.OperationNode, st *walkState, depth int) (decimal.Decimal, error) {
	if depth > maxDepth {
		return decimal.Zero, fmt.Errorf("%w: limit %d reached at operation %q", ErrDepthExceeded, maxDepth, node.Number)
	}

	if _, ok := st.nodes[node]; ok {
		return decimal.Zero, fmt.Errorf("%w: operation %q is its own ancestor", ErrCyclicReference, node.Number)
	}
	st.nodes[node] = struct{}{}
	defer delete(st.nodes, node)

	if node.IsReference() {
		target, err := w.resolve(ctx, node)
		if err != nil {
			return decimal.Zero, err
		}

		key := keyOf(node.ReferenceTechnologyID, target)
		if _, ok := st.trees[key]; ok {
			return decimal.Zero, fmt.Errorf("%w: technology %d is already on the path at operation %q", ErrCyclicReference, node.ReferenceTechnologyID, node.Number)
		}
		st.trees[key] = struct{}{}
		defer delete(st.trees, key)

		return w.walk(ctx, target, st, depth+1)
	}

	pathCost := decimal.Zero
	for _, child := range node.Children {
		childCost, err := w.walk(ctx, child, st, depth+1)
		if err != nil {
			return decimal.Zero, err
		}
		if childCost.GreaterThan(pathCost) {
			pathCost = childCost
		}
	}

	own, err := w.cost(ctx, node)
	if err != nil {
		return decimal.Zero, err
	}
	return pathCost.Add(own), nil
}

func (w *Walker) resolve(ctx context.Context, node *technology.OperationNode) (*technology.OperationNode, error) {
	if w.resolver == nil {
		return nil, fmt.Errorf("%w: operation %q references technology %d but no resolver is configured", ErrUnresolvedReference, node.Number, node.ReferenceTechnologyID)
	}
	target, err := w.resolver.ResolveTree(ctx, node.ReferenceTechnologyID)
	if err != nil {
		return nil, fmt.Errorf("%w: operation %q: %w", ErrUnresolvedReference, node.Number, err)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: operation %q: technology %d has no operations", ErrUnresolvedReference, node.Number, node.ReferenceTechnologyID)
	}
	return target, nil
}

// pieceworkScale is the number of decimal places kept when dividing the
// piecework cost by the number of operations.
const pieceworkScale = 3

// PieceworkCost is (pieceworkCost / numberOfOperations) * sum(output quantities).
// Absent piecework cost is zero, absent or zero number of operations is one.
func PieceworkCost(_ context.Context, node *technology.OperationNode) (decimal.Decimal, error) {
	piecework := decimal.Zero
	if node.PieceworkCost.Valid {
		piecework = node.PieceworkCost.Decimal
	}
	operations := decimal.NewFromInt(1)
	if node.NumberOfOperations.Valid && !node.NumberOfOperations.Decimal.IsZero() {
		operations = node.NumberOfOperations.Decimal
	}

	perUnit := piecework.DivRound(operations, pieceworkScale)
	return perUnit.Mul(node.OutputQuantity()), nil
}

// RateField selects the hourly rate used by HourlyCost.
type RateField int

const (
	LaborRate RateField = iota
	MachineRate
)

func (f RateField) rate(node *technology.OperationNode) decimal.Decimal {
	v := node.LaborHourlyCost
	if f == MachineRate {
		v = node.MachineHourlyCost
	}
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

// HourlyCost returns a NodeCost of estimated realization time times the selected rate.
func HourlyCost(estimator TimeEstimator, quantity decimal.Decimal, includeTPZ bool, field RateField) NodeCost {
	return func(ctx context.Context, node *technology.OperationNode) (decimal.Decimal, error) {
		seconds, err := estimator.EstimateRealizationTime(ctx, node, quantity, includeTPZ)
		if err != nil {
			return decimal.Zero, fmt.Errorf("estimate realization time of operation %q: %w", node.Number, err)
		}
		return decimal.NewFromInt(int64(seconds)).Mul(field.rate(node)), nil
	}
}
