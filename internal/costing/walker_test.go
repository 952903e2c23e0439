package costing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/costnorms/internal/technology"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func op(number string, children ...*technology.OperationNode) *technology.OperationNode {
	return &technology.OperationNode{Number: number, Kind: technology.KindOperation, Children: children}
}

func ref(number string, technologyID int64) *technology.OperationNode {
	return &technology.OperationNode{Number: number, Kind: technology.KindReference, ReferenceTechnologyID: technologyID}
}

// fixedCost charges each node the amount registered for its number.
func fixedCost(costs map[string]string) NodeCost {
	return func(_ context.Context, n *technology.OperationNode) (decimal.Decimal, error) {
		c, ok := costs[n.Number]
		if !ok {
			return decimal.Zero, nil
		}
		return dec(c), nil
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func TestWalk_LeafWithoutNormsIsZero(t *testing.T) {
	leaf := op("1.")

	piecework, err := NewWalker(nil, PieceworkCost).Walk(context.Background(), leaf)
	if err != nil {
		t.Fatalf("walk piecework: %v", err)
	}
	assertDecimal(t, "piecework", piecework, "0")

	hourly, err := NewWalker(nil, HourlyCost(constEstimator(120), dec("5"), true, LaborRate)).Walk(context.Background(), leaf)
	if err != nil {
		t.Fatalf("walk hourly: %v", err)
	}
	assertDecimal(t, "hourly", hourly, "0")
}

func TestWalk_TakesMaxOfChildrenNotSum(t *testing.T) {
	root := op("root", op("a"), op("b"))
	w := NewWalker(nil, fixedCost(map[string]string{"root": "5", "a": "10", "b": "25"}))

	got, err := w.Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if got.Equal(dec("40")) {
		t.Fatalf("walk summed siblings: got %s", got)
	}
	assertDecimal(t, "walk(root)", got, "30")
}

func TestWalk_MaxPathAcrossLevels(t *testing.T) {
	// root(1) -> [a(2) -> [c(50)], b(40) -> [d(1)]]
	root := op("root", op("a", op("c")), op("b", op("d")))
	w := NewWalker(nil, fixedCost(map[string]string{"root": "1", "a": "2", "b": "40", "c": "50", "d": "1"}))

	got, err := w.Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	assertDecimal(t, "walk(root)", got, "53")
}

func TestWalk_NegativeChildDoesNotLowerPath(t *testing.T) {
	root := op("root", op("a"))
	w := NewWalker(nil, fixedCost(map[string]string{"root": "5", "a": "-7"}))

	got, err := w.Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	assertDecimal(t, "walk(root)", got, "5")
}

func TestPieceworkCost_RoundsPerUnitToThreePlaces(t *testing.T) {
	tests := []struct {
		name       string
		piecework  decimal.NullDecimal
		operations decimal.NullDecimal
		quantities []string
		want       string
	}{
		{name: "half", piecework: nullDec("9"), operations: nullDec("2"), quantities: []string{"1", "3"}, want: "18.000"},
		{name: "thirds", piecework: nullDec("10"), operations: nullDec("3"), quantities: []string{"3"}, want: "9.999"},
		{name: "half up", piecework: nullDec("1"), operations: nullDec("16"), quantities: []string{"1"}, want: "0.063"},
		{name: "absent operations default to one", piecework: nullDec("2.5"), quantities: []string{"4"}, want: "10"},
		{name: "zero operations default to one", piecework: nullDec("2.5"), operations: nullDec("0"), quantities: []string{"4"}, want: "10"},
		{name: "absent piecework is zero", operations: nullDec("2"), quantities: []string{"4"}, want: "0"},
		{name: "no output products", piecework: nullDec("7"), want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := op("1.")
			n.PieceworkCost = tt.piecework
			n.NumberOfOperations = tt.operations
			for _, q := range tt.quantities {
				n.OutputProducts = append(n.OutputProducts, technology.OutputProduct{Quantity: dec(q)})
			}

			got, err := PieceworkCost(context.Background(), n)
			if err != nil {
				t.Fatalf("piecework cost: %v", err)
			}
			assertDecimal(t, "cost", got, tt.want)
		})
	}
}

func TestPieceworkCost_MonotonicInOutputQuantity(t *testing.T) {
	n := op("1.")
	n.PieceworkCost = nullDec("3.7")
	n.NumberOfOperations = nullDec("3")

	prev := decimal.Zero
	for _, q := range []string{"0", "0.5", "1", "2", "2", "10", "1000"} {
		n.OutputProducts = []technology.OutputProduct{{Quantity: dec(q)}}
		got, err := PieceworkCost(context.Background(), n)
		if err != nil {
			t.Fatalf("piecework cost: %v", err)
		}
		if got.LessThan(prev) {
			t.Fatalf("cost decreased from %s to %s at quantity %s", prev, got, q)
		}
		prev = got
	}
}

func TestWalk_ReferenceIsTransparent(t *testing.T) {
	target := op("t-root", op("t-a"), op("t-b", op("t-c")))
	resolver := technology.MapResolver{7: target}
	w := NewWalker(resolver, fixedCost(map[string]string{"t-root": "3", "t-a": "8", "t-b": "4", "t-c": "6"}))

	direct, err := w.Walk(context.Background(), target)
	if err != nil {
		t.Fatalf("walk target: %v", err)
	}
	viaRef, err := w.Walk(context.Background(), ref("r", 7))
	if err != nil {
		t.Fatalf("walk reference: %v", err)
	}
	if !direct.Equal(viaRef) {
		t.Fatalf("walk(ref) = %s, walk(target) = %s", viaRef, direct)
	}
	assertDecimal(t, "walk(ref)", viaRef, "13")
}

func TestWalk_ReferenceOwnNormsAreIgnored(t *testing.T) {
	target := op("t-root")
	target.PieceworkCost = nullDec("2")
	target.OutputProducts = []technology.OutputProduct{{Quantity: dec("1")}}

	r := ref("r", 1)
	r.PieceworkCost = nullDec("1000")
	r.OutputProducts = []technology.OutputProduct{{Quantity: dec("1000")}}

	got, err := NewWalker(technology.MapResolver{1: target}, PieceworkCost).Walk(context.Background(), op("root", r))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	assertDecimal(t, "walk(root)", got, "2")
}

func TestWalk_UnresolvedReference(t *testing.T) {
	root := op("root", ref("r", 99))

	_, err := NewWalker(technology.MapResolver{}, PieceworkCost).Walk(context.Background(), root)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected ErrUnresolvedReference, got %v", err)
	}
	if !errors.Is(err, technology.ErrNotFound) {
		t.Fatalf("expected resolver error to be wrapped, got %v", err)
	}

	_, err = NewWalker(nil, PieceworkCost).Walk(context.Background(), root)
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Fatalf("expected ErrUnresolvedReference without resolver, got %v", err)
	}
}

func TestWalk_CyclicReference(t *testing.T) {
	one := op("one", ref("to-two", 2))
	one.TechnologyID = 1
	two := op("two", ref("to-one", 1))
	two.TechnologyID = 2
	resolver := technology.MapResolver{1: one, 2: two}

	_, err := NewWalker(resolver, PieceworkCost).Walk(context.Background(), one)
	if !errors.Is(err, ErrCyclicReference) {
		t.Fatalf("expected ErrCyclicReference, got %v", err)
	}
}

func TestWalk_SelfReferenceWithoutTechnologyIDs(t *testing.T) {
	root := op("root")
	root.Children = []*technology.OperationNode{ref("self", 5)}

	_, err := NewWalker(technology.MapResolver{5: root}, PieceworkCost).Walk(context.Background(), root)
	if !errors.Is(err, ErrCyclicReference) {
		t.Fatalf("expected ErrCyclicReference, got %v", err)
	}
}

func TestWalk_SharedReferenceIsNotACycle(t *testing.T) {
	shared := op("shared")
	shared.TechnologyID = 3
	root := op("root", ref("a", 3), op("b", ref("c", 3)))
	root.TechnologyID = 1
	w := NewWalker(technology.MapResolver{3: shared}, fixedCost(map[string]string{"shared": "4", "b": "1", "root": "1"}))

	got, err := w.Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	assertDecimal(t, "walk(root)", got, "6")
}

func TestWalk_CostErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	w := NewWalker(nil, func(_ context.Context, n *technology.OperationNode) (decimal.Decimal, error) {
		if n.Number == "b" {
			return decimal.Zero, boom
		}
		return decimal.NewFromInt(1), nil
	})

	_, err := w.Walk(context.Background(), op("root", op("a"), op("b")))
	if !errors.Is(err, boom) {
		t.Fatalf("expected cost error, got %v", err)
	}
}

func TestWalk_ChildPointerCycleIsCyclic(t *testing.T) {
	a := op("a")
	b := op("b", a)
	a.Children = []*technology.OperationNode{b}

	_, err := NewWalker(nil, PieceworkCost).Walk(context.Background(), a)
	if !errors.Is(err, ErrCyclicReference) {
		t.Fatalf("expected ErrCyclicReference, got %v", err)
	}
	if errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("child cycle should be found before the depth limit, got %v", err)
	}
}

func chain(depth int) *technology.OperationNode {
	root := op("n")
	cur := root
	for i := 0; i < depth; i++ {
		next := op("n")
		cur.Children = []*technology.OperationNode{next}
		cur = next
	}
	return root
}

func TestWalk_DeepAcyclicChainHitsDepthLimit(t *testing.T) {
	w := NewWalker(nil, fixedCost(map[string]string{"n": "1"}))

	got, err := w.Walk(context.Background(), chain(maxDepth))
	if err != nil {
		t.Fatalf("walk at the depth limit: %v", err)
	}
	assertDecimal(t, "walk(chain)", got, "4097")

	_, err = w.Walk(context.Background(), chain(maxDepth+1))
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
	if errors.Is(err, ErrCyclicReference) {
		t.Fatalf("deep acyclic chain reported as cyclic: %v", err)
	}
}
