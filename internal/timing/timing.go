// Package timing estimates how long an operation tree takes to realise a quantity.
package timing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/costnorms/internal/costing"
	"github.com/Simplici0/costnorms/internal/technology"
)

// ErrTimeOverflow reports a realization time above math.MaxInt32 seconds.
var ErrTimeOverflow = errors.New("realization time overflows")

var maxSeconds = decimal.NewFromInt(math.MaxInt32)

// Estimator estimates realization times from the time norms of operation nodes.
//
// The time of a node is the longest child path plus the node's own time:
//
//	tj * ceil(quantity / productionInOneCycle) + tpz (optional) + timeNextOperation
//
// All values are seconds.
type Estimator struct {
	resolver technology.Resolver
}

var _ costing.TimeEstimator = (*Estimator)(nil)

// NewEstimator returns an Estimator that follows reference nodes through resolver.
func NewEstimator(resolver technology.Resolver) *Estimator {
	return &Estimator{resolver: resolver}
}

// EstimateRealizationTime returns the realization time of the subtree rooted at node.
func (e *Estimator) EstimateRealizationTime(ctx context.Context, node *technology.OperationNode, quantity decimal.Decimal, includeTPZ bool) (int, error) {
	own := func(_ context.Context, n *technology.OperationNode) (decimal.Decimal, error) {
		return operationSeconds(n, quantity, includeTPZ), nil
	}

	total, err := costing.NewWalker(e.resolver, own).Walk(ctx, node)
	if err != nil {
		return 0, err
	}
	return toSeconds(total, node)
}

// OperationTime returns the own time of a single operation node, ignoring its children.
func OperationTime(node *technology.OperationNode, quantity decimal.Decimal, includeTPZ bool) (int, error) {
	return toSeconds(operationSeconds(node, quantity, includeTPZ), node)
}

func operationSeconds(node *technology.OperationNode, quantity decimal.Decimal, includeTPZ bool) decimal.Decimal {
	cycle := decimal.NewFromInt(1)
	if node.ProductionInOneCycle.Valid && node.ProductionInOneCycle.Decimal.IsPositive() {
		cycle = node.ProductionInOneCycle.Decimal
	}
	cycles := quantity.Div(cycle).Ceil()

	t := cycles.Mul(decimal.NewFromInt(int64(node.TJ)))
	if includeTPZ {
		t = t.Add(decimal.NewFromInt(int64(node.TPZ)))
	}
	return t.Add(decimal.NewFromInt(int64(node.TimeNextOperation)))
}

func toSeconds(t decimal.Decimal, node *technology.OperationNode) (int, error) {
	if t.GreaterThan(maxSeconds) || t.LessThan(maxSeconds.Neg()) {
		return 0, fmt.Errorf("%w: %s seconds at operation %q", ErrTimeOverflow, t, node.Number)
	}
	return int(t.IntPart()), nil
}
