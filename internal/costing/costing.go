// Package costing computes operation costs of a technology tree under the
// piecework or hourly costing model.
package costing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/costnorms/internal/technology"
)

var (
	// ErrInvalidArgument reports a missing or non-positive quantity, or a source without an operation tree.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnresolvedReference reports a reference node whose technology tree cannot be loaded.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrCyclicReference reports reference nodes that lead back into a tree already being walked.
	ErrCyclicReference = errors.New("cyclic reference")
	// ErrDepthExceeded reports a tree nested deeper than the walker accepts.
	ErrDepthExceeded = errors.New("operation tree too deep")
)

// Mode selects the costing model.
type Mode int

const (
	ModePiecework Mode = iota + 1
	ModeHourly
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModePiecework:
		return "piecework"
	case ModeHourly:
		return "hourly"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "piecework" or "hourly", case-insensitively.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "piecework":
		return ModePiecework, nil
	case "hourly":
		return ModeHourly, nil
	default:
		return 0, fmt.Errorf("%w: unknown costing mode %q", ErrInvalidArgument, raw)
	}
}

// TimeEstimator estimates the realization time of an operation subtree in seconds.
// It must be deterministic for a given node, quantity and setup flag.
type TimeEstimator interface {
	EstimateRealizationTime(ctx context.Context, node *technology.OperationNode, quantity decimal.Decimal, includeTPZ bool) (int, error)
}

// Request holds the inputs of one cost calculation.
type Request struct {
	Source     technology.Source
	Mode       Mode
	IncludeTPZ bool
	Quantity   decimal.NullDecimal
}

// Result keys as exposed by Result.Map.
const (
	KeyTotalMachineHourlyCosts = "totalMachineHourlyCosts"
	KeyTotalLaborHourlyCosts   = "totalLaborHourlyCosts"
	KeyTotalPieceWorkCosts     = "totalPieceWorkCosts"
)

// Result holds the aggregate costs. Only the fields of the requested mode are non-zero.
type Result struct {
	TotalMachineHourlyCost decimal.Decimal
	TotalLaborHourlyCost   decimal.Decimal
	TotalPieceworkCost     decimal.Decimal
}

// Map returns the result keyed by its public field names.
func (r Result) Map() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		KeyTotalMachineHourlyCosts: r.TotalMachineHourlyCost,
		KeyTotalLaborHourlyCosts:   r.TotalLaborHourlyCost,
		KeyTotalPieceWorkCosts:     r.TotalPieceworkCost,
	}
}

// Equal reports whether both results hold the same values.
func (r Result) Equal(other Result) bool {
	return r.TotalMachineHourlyCost.Equal(other.TotalMachineHourlyCost) &&
		r.TotalLaborHourlyCost.Equal(other.TotalLaborHourlyCost) &&
		r.TotalPieceworkCost.Equal(other.TotalPieceworkCost)
}
