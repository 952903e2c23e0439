package seed

import (
	"database/sql"
	"errors"
	"fmt"
)

const (
	demoPaintNumber = "T-PAINT"
	demoFrameNumber = "T-FRAME"
	demoOrderNumber = "ORD-0001"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

type demoOutput struct {
	product  string
	quantity string
}

// demoOperation describes an operation component; empty strings are absent norms.
type demoOperation struct {
	number              string
	referenceTechnology string
	labor               string
	machine             string
	piecework           string
	operations          string
	cycle               string
	tpz                 int
	tj                  int
	outputs             []demoOutput
	children            []demoOperation
}

type demoTechnology struct {
	number string
	name   string
	root   demoOperation
}

// Referenced technologies come before the ones that reference them.
var demoTechnologies = []demoTechnology{
	{
		number: demoPaintNumber,
		name:   "Powder coating",
		root: demoOperation{
			number: "1.", labor: "35", machine: "50", piecework: "8", tpz: 900, tj: 90,
			outputs: []demoOutput{{product: "coated-frame", quantity: "1"}},
		},
	},
	{
		number: demoFrameNumber,
		name:   "Bicycle frame",
		root: demoOperation{
			number: "1.", labor: "40", machine: "25", piecework: "12", operations: "2", tpz: 600, tj: 120,
			outputs: []demoOutput{{product: "frame", quantity: "1"}},
			children: []demoOperation{
				{
					number: "1.1.", labor: "30", machine: "15", piecework: "3", cycle: "4", tj: 30,
					outputs: []demoOutput{{product: "tube", quantity: "4"}},
				},
				{number: "1.2.", referenceTechnology: demoPaintNumber},
			},
		},
	},
}

// Run inserts the demo technologies and order in an idempotent way.
func Run(db *sql.DB) (Stats, error) {
	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, t := range demoTechnologies {
		if err := ensureTechnology(tx, t, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}
	if err := ensureOrder(tx, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func lookupTechnology(tx *sql.Tx, number string) (int64, bool, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM technologies WHERE number = ?`, number).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query technology %s: %w", number, err)
	}
	return id, true, nil
}

func ensureTechnology(tx *sql.Tx, t demoTechnology, stats *Stats) error {
	_, exists, err := lookupTechnology(tx, t.number)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	result, err := tx.Exec(`INSERT INTO technologies (number, name) VALUES (?, ?)`, t.number, t.name)
	if err != nil {
		return fmt.Errorf("insert technology %s: %w", t.number, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read technology id: %w", err)
	}

	if err := insertOperation(tx, id, sql.NullInt64{}, 0, t.root); err != nil {
		return err
	}
	stats.Inserts++
	return nil
}

func insertOperation(tx *sql.Tx, technologyID int64, parentID sql.NullInt64, priority int, op demoOperation) error {
	entityType := "operation"
	var referenceID sql.NullInt64
	if op.referenceTechnology != "" {
		id, exists, err := lookupTechnology(tx, op.referenceTechnology)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("operation %s references unknown technology %s", op.number, op.referenceTechnology)
		}
		entityType = "referenceTechnology"
		referenceID = sql.NullInt64{Int64: id, Valid: true}
	}

	result, err := tx.Exec(`
		INSERT INTO operation_components (
			technology_id,
			parent_id,
			node_number,
			priority,
			entity_type,
			reference_technology_id,
			labor_hourly_cost,
			machine_hourly_cost,
			piecework_cost,
			number_of_operations,
			production_in_one_cycle,
			tpz,
			tj
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, technologyID, parentID, op.number, priority, entityType, referenceID,
		nullable(op.labor), nullable(op.machine), nullable(op.piecework), nullable(op.operations), nullable(op.cycle),
		op.tpz, op.tj)
	if err != nil {
		return fmt.Errorf("insert operation %s: %w", op.number, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read operation id: %w", err)
	}

	for _, out := range op.outputs {
		if _, err := tx.Exec(`
			INSERT INTO operation_product_out_components (operation_component_id, product_number, quantity)
			VALUES (?, ?, ?)
		`, id, out.product, out.quantity); err != nil {
			return fmt.Errorf("insert output product %s: %w", out.product, err)
		}
	}

	for i, child := range op.children {
		if err := insertOperation(tx, technologyID, sql.NullInt64{Int64: id, Valid: true}, i, child); err != nil {
			return err
		}
	}
	return nil
}

func ensureOrder(tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM orders WHERE number = ? LIMIT 1)`, demoOrderNumber).Scan(&exists); err != nil {
		return fmt.Errorf("check demo order existence: %w", err)
	}
	if exists {
		return nil
	}

	id, ok, err := lookupTechnology(tx, demoFrameNumber)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("demo order needs technology %s", demoFrameNumber)
	}

	if _, err := tx.Exec(`
		INSERT INTO orders (number, technology_id, planned_quantity)
		VALUES (?, ?, ?)
	`, demoOrderNumber, id, "25"); err != nil {
		return fmt.Errorf("insert demo order: %w", err)
	}
	stats.Inserts++
	return nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
