package costing

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Simplici0/costnorms/internal/technology"
)

// Calculator computes operation costs. It holds no per-call state and is safe
// for concurrent use.
type Calculator struct {
	resolver  technology.Resolver
	estimator TimeEstimator
}

// NewCalculator returns a Calculator resolving reference nodes through
// resolver and estimating times through estimator.
func NewCalculator(resolver technology.Resolver, estimator TimeEstimator) *Calculator {
	return &Calculator{resolver: resolver, estimator: estimator}
}

// Calculate returns the costs of producing req.Quantity from req.Source.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Result, error) {
	if !req.Quantity.Valid {
		return Result{}, fmt.Errorf("%w: quantity is null", ErrInvalidArgument)
	}
	quantity := req.Quantity.Decimal
	if !quantity.IsPositive() {
		return Result{}, fmt.Errorf("%w: quantity should be greater than 0, got %s", ErrInvalidArgument, quantity)
	}
	if req.Source == nil {
		return Result{}, fmt.Errorf("%w: source is null", ErrInvalidArgument)
	}
	root := req.Source.OperationTree()
	if root == nil {
		return Result{}, fmt.Errorf("%w: incompatible source entity type", ErrInvalidArgument)
	}

	switch req.Mode {
	case ModePiecework:
		total, err := NewWalker(c.resolver, PieceworkCost).Walk(ctx, root)
		if err != nil {
			return Result{}, err
		}
		return Result{TotalPieceworkCost: total}, nil
	case ModeHourly:
		return c.calculateHourly(ctx, root, quantity, req.IncludeTPZ)
	default:
		return Result{}, fmt.Errorf("%w: unsupported costing mode %s", ErrInvalidArgument, req.Mode)
	}
}

func (c *Calculator) calculateHourly(ctx context.Context, root *technology.OperationNode, quantity decimal.Decimal, includeTPZ bool) (Result, error) {
	if c.estimator == nil {
		return Result{}, fmt.Errorf("%w: hourly costing needs a time estimator", ErrInvalidArgument)
	}
	estimator := newMemoEstimator(c.estimator)

	totalTime, err := estimator.EstimateRealizationTime(ctx, root, quantity, includeTPZ)
	if err != nil {
		return Result{}, fmt.Errorf("estimate realization time: %w", err)
	}
	if totalTime == 0 {
		return Result{}, nil
	}

	var labor, machine decimal.Decimal
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		labor, err = NewWalker(c.resolver, HourlyCost(estimator, quantity, includeTPZ, LaborRate)).Walk(gctx, root)
		return err
	})
	g.Go(func() error {
		var err error
		machine, err = NewWalker(c.resolver, HourlyCost(estimator, quantity, includeTPZ, MachineRate)).Walk(gctx, root)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return Result{
		TotalLaborHourlyCost:   labor,
		TotalMachineHourlyCost: machine,
	}, nil
}

// memoEstimator caches estimates for the duration of one Calculate call so the
// labor and machine passes share them.
type memoEstimator struct {
	next  TimeEstimator
	group singleflight.Group

	mu    sync.Mutex
	times map[string]int
}

func newMemoEstimator(next TimeEstimator) *memoEstimator {
	return &memoEstimator{next: next, times: make(map[string]int)}
}

func (m *memoEstimator) lookup(key string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.times[key]
	return t, ok
}

func (m *memoEstimator) EstimateRealizationTime(ctx context.Context, node *technology.OperationNode, quantity decimal.Decimal, includeTPZ bool) (int, error) {
	key := fmt.Sprintf("%p|%s|%t", node, quantity, includeTPZ)
	if t, ok := m.lookup(key); ok {
		return t, nil
	}

	v, err, _ := m.group.Do(key, func() (any, error) {
		if t, ok := m.lookup(key); ok {
			return t, nil
		}
		t, err := m.next.EstimateRealizationTime(ctx, node, quantity, includeTPZ)
		if err != nil {
			return 0, err
		}
		m.mu.Lock()
		m.times[key] = t
		m.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}
