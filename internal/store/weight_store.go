package store

import (
	"context"
	"fmt"

	"github.com/gustaf30/nexus/internal/model"
)

// GetWeights retrieves the heuristic weights configured for one source.
func (s *SQLiteStore) GetWeights(
	ctx context.Context,
	source model.SourceType,
) ([]model.HeuristicWeight, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM heuristic_weights WHERE source = ? ORDER BY signal",
		string(source),
	)
	if err != nil {
		return nil, fmt.Errorf("querying weights for %s: %w", source, err)
	}
	defer rows.Close()

	var weights []model.HeuristicWeight
	for rows.Next() {
		var (
			w   model.HeuristicWeight
			src string
		)
		if err := rows.Scan(&w.ID, &src, &w.Signal, &w.Weight); err != nil {
			return nil, fmt.Errorf("scanning weight row: %w", err)
		}
		w.Source = model.SourceType(src)
		weights = append(weights, w)
	}

	return weights, rows.Err()
}

// UpsertWeight inserts or updates the weight for a (source, signal) pair.
func (s *SQLiteStore) UpsertWeight(
	ctx context.Context,
	w model.HeuristicWeight,
) error {
	if w.ID == "" {
		w.ID = string(w.Source) + "-" + w.Signal
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO heuristic_weights (id, source, signal, weight)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source, signal) DO UPDATE SET weight=excluded.weight`,
		w.ID, string(w.Source), w.Signal, w.Weight,
	)
	if err != nil {
		return fmt.Errorf("upserting weight %s/%s: %w", w.Source, w.Signal, err)
	}
	return nil
}

// SeedDefaultWeights installs the default signal weights for the built-in
// sources. Existing rows keep their (possibly user-edited) values: only
// the weight of a freshly inserted pair comes from the defaults.
func (s *SQLiteStore) SeedDefaultWeights(ctx context.Context) error {
	for _, w := range model.DefaultWeights() {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO heuristic_weights (id, source, signal, weight)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(source, signal) DO NOTHING`,
			w.ID, string(w.Source), w.Signal, w.Weight,
		)
		if err != nil {
			return fmt.Errorf("seeding weight %s/%s: %w", w.Source, w.Signal, err)
		}
	}
	return nil
}
