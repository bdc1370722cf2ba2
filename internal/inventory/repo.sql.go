package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inventory in PostgreSQL. One row per
// (product, lot, location); the ck_inventory_qty_positive check constraint
// backs the non-negative invariant at the store level.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSnapshot loads all lots with their per-location quantities.
func (r *Repository) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT product_code, product_name, category, lot_code, expiry, location, qty
FROM inventory_lots ORDER BY product_code, lot_code, location`)
	if err != nil {
		return nil, fmt.Errorf("inventory: snapshot query: %w", err)
	}
	defer rows.Close()

	byKey := make(map[string]*Lot)
	var order []string
	for rows.Next() {
		var product, name, category, lotCode, location string
		var expiry *time.Time
		var qty float64
		if err := rows.Scan(&product, &name, &category, &lotCode, &expiry, &location, &qty); err != nil {
			return nil, fmt.Errorf("inventory: snapshot scan: %w", err)
		}
		key := lotKey(product, lotCode)
		record, ok := byKey[key]
		if !ok {
			record = &Lot{
				Product:    product,
				Name:       name,
				Category:   category,
				Lot:        lotCode,
				Expiry:     expiry,
				Quantities: make(map[Location]float64),
			}
			byKey[key] = record
			order = append(order, key)
		}
		record.Quantities[Location(location)] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: snapshot rows: %w", err)
	}

	lots := make([]Lot, 0, len(order))
	for _, key := range order {
		lots = append(lots, *byKey[key])
	}
	return NewSnapshot(lots)
}

// ApplyDelta adjusts one location quantity inside a transaction, locking the
// row so concurrent writers serialize per record.
func (r *Repository) ApplyDelta(ctx context.Context, product, lot string, loc Location, delta float64) (float64, error) {
	if r == nil {
		return 0, errors.New("inventory repository not initialised")
	}
	var newQty float64
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, fmt.Errorf("inventory: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	newQty, err = r.applyDeltaTx(ctx, tx, product, lot, loc, delta)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("inventory: commit: %w", err)
	}
	return newQty, nil
}

// ApplyDeltas applies a batch of movements inside one transaction; any
// failure rolls back the whole batch.
func (r *Repository) ApplyDeltas(ctx context.Context, movements []Movement) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	if len(movements) == 0 {
		return nil
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("inventory: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, m := range movements {
		if _, err := r.applyDeltaTx(ctx, tx, m.Product, m.Lot, m.Location, m.Delta); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("inventory: commit: %w", err)
	}
	return nil
}

// applyDeltaTx performs one locked read-modify-write within the caller's
// transaction.
func (r *Repository) applyDeltaTx(ctx context.Context, tx pgx.Tx, product, lot string, loc Location, delta float64) (float64, error) {
	var current float64
	err := tx.QueryRow(ctx, `SELECT qty FROM inventory_lots
WHERE product_code=$1 AND lot_code=$2 AND location=$3 FOR UPDATE`, product, lot, string(loc)).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if delta <= 0 {
				return 0, fmt.Errorf("%w: %s/%s %s", ErrLotNotFound, product, lot, loc)
			}
			// Positive delta against a missing location row creates it,
			// inheriting lot metadata from a sibling row.
			if err := r.insertLocationRow(ctx, tx, product, lot, loc, delta); err != nil {
				return 0, err
			}
			return delta, nil
		}
		return 0, fmt.Errorf("inventory: lock row: %w", err)
	}

	newQty := current + delta
	if newQty < -1e-9 {
		return 0, fmt.Errorf("%w: %s/%s %s %.2f%+.2f", ErrNegativeQuantity, product, lot, loc, current, delta)
	}
	if newQty < 0 {
		newQty = 0
	}
	_, err = tx.Exec(ctx, `UPDATE inventory_lots SET qty=$4, updated_at=NOW()
WHERE product_code=$1 AND lot_code=$2 AND location=$3`, product, lot, string(loc), newQty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "ck_inventory_qty_positive" {
			return 0, ErrNegativeQuantity
		}
		return 0, fmt.Errorf("inventory: update qty: %w", err)
	}
	return newQty, nil
}

func (r *Repository) insertLocationRow(ctx context.Context, tx pgx.Tx, product, lot string, loc Location, qty float64) error {
	var name, category string
	var expiry *time.Time
	err := tx.QueryRow(ctx, `SELECT product_name, category, expiry FROM inventory_lots
WHERE product_code=$1 AND lot_code=$2 LIMIT 1`, product, lot).Scan(&name, &category, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s/%s", ErrLotNotFound, product, lot)
		}
		return fmt.Errorf("inventory: sibling lookup: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO inventory_lots (product_code, product_name, category, lot_code, expiry, location, qty, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`, product, name, category, lot, expiry, string(loc), qty)
	if err != nil {
		return fmt.Errorf("inventory: insert location row: %w", err)
	}
	return nil
}
