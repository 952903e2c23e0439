package technology

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Store loads technologies, orders and their operation trees from SQLite.
// It never writes.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store reading from db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListTechnologies returns all technologies without their trees.
func (s *Store) ListTechnologies(ctx context.Context) ([]Technology, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, name
		FROM technologies
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query technologies: %w", err)
	}
	defer rows.Close()

	technologies := make([]Technology, 0)
	for rows.Next() {
		var t Technology
		if err := rows.Scan(&t.ID, &t.Number, &t.Name); err != nil {
			return nil, fmt.Errorf("scan technology: %w", err)
		}
		technologies = append(technologies, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate technologies: %w", err)
	}

	return technologies, nil
}

// LoadTechnology returns a technology with its operation tree. Root is nil when
// the technology has no operation components.
func (s *Store) LoadTechnology(ctx context.Context, id int64) (*Technology, error) {
	t := &Technology{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT number, name FROM technologies WHERE id = ?`, id).Scan(&t.Number, &t.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("technology %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query technology: %w", err)
	}

	t.Root, err = s.loadTree(ctx, id)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// LoadOrder returns an order with the operation tree of its technology.
func (s *Store) LoadOrder(ctx context.Context, id int64) (*Order, error) {
	o := &Order{ID: id}
	var technologyID sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT number, technology_id, planned_quantity
		FROM orders
		WHERE id = ?
	`, id).Scan(&o.Number, &technologyID, &o.PlannedQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query order: %w", err)
	}

	if !technologyID.Valid {
		return o, nil
	}
	o.TechnologyID = technologyID.Int64

	o.Root, err = s.loadTree(ctx, o.TechnologyID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ResolveTree implements Resolver.
func (s *Store) ResolveTree(ctx context.Context, technologyID int64) (*OperationNode, error) {
	root, err := s.loadTree(ctx, technologyID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, fmt.Errorf("technology %d has no operations: %w", technologyID, ErrNotFound)
	}
	return root, nil
}

func (s *Store) loadTree(ctx context.Context, technologyID int64) (*OperationNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			id,
			parent_id,
			node_number,
			entity_type,
			reference_technology_id,
			labor_hourly_cost,
			machine_hourly_cost,
			piecework_cost,
			number_of_operations,
			production_in_one_cycle,
			tpz,
			tj,
			time_next_operation
		FROM operation_components
		WHERE technology_id = ?
		ORDER BY priority, id
	`, technologyID)
	if err != nil {
		return nil, fmt.Errorf("query operation components: %w", err)
	}
	defer rows.Close()

	nodes := make(map[int64]*OperationNode)
	parents := make(map[int64]int64)
	order := make([]int64, 0)
	var roots []*OperationNode
	for rows.Next() {
		n := &OperationNode{TechnologyID: technologyID}
		var parentID, referenceID sql.NullInt64
		var entityType string
		if err := rows.Scan(
			&n.ID,
			&parentID,
			&n.Number,
			&entityType,
			&referenceID,
			&n.LaborHourlyCost,
			&n.MachineHourlyCost,
			&n.PieceworkCost,
			&n.NumberOfOperations,
			&n.ProductionInOneCycle,
			&n.TPZ,
			&n.TJ,
			&n.TimeNextOperation,
		); err != nil {
			return nil, fmt.Errorf("scan operation component: %w", err)
		}
		n.Kind = ParseNodeKind(entityType)
		if referenceID.Valid {
			n.ReferenceTechnologyID = referenceID.Int64
		}

		nodes[n.ID] = n
		order = append(order, n.ID)
		if parentID.Valid {
			parents[n.ID] = parentID.Int64
		} else {
			roots = append(roots, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation components: %w", err)
	}

	if len(roots) == 0 {
		return nil, nil
	}
	if len(roots) > 1 {
		return nil, fmt.Errorf("technology %d has %d root operations", technologyID, len(roots))
	}

	for _, id := range order {
		parentID, ok := parents[id]
		if !ok {
			continue
		}
		parent, ok := nodes[parentID]
		if !ok {
			return nil, fmt.Errorf("operation component %d: parent %d outside technology %d", id, parentID, technologyID)
		}
		parent.Children = append(parent.Children, nodes[id])
	}

	if err := s.loadOutputProducts(ctx, technologyID, nodes); err != nil {
		return nil, err
	}

	return roots[0], nil
}

func (s *Store) loadOutputProducts(ctx context.Context, technologyID int64, nodes map[int64]*OperationNode) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.operation_component_id, p.product_number, p.quantity
		FROM operation_product_out_components p
		JOIN operation_components c ON c.id = p.operation_component_id
		WHERE c.technology_id = ?
		ORDER BY p.id
	`, technologyID)
	if err != nil {
		return fmt.Errorf("query output products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var componentID int64
		var p OutputProduct
		var quantity decimal.NullDecimal
		if err := rows.Scan(&componentID, &p.ProductNumber, &quantity); err != nil {
			return fmt.Errorf("scan output product: %w", err)
		}
		p.Quantity = quantity.Decimal
		if n, ok := nodes[componentID]; ok {
			n.OutputProducts = append(n.OutputProducts, p)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate output products: %w", err)
	}
	return nil
}
