package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foodflow/foodflow/internal/events"
)

// Service coordinates inventory operations that live outside the simulator,
// currently recall quarantines.
type Service struct {
	repo   RepositoryPort
	sink   events.Sink
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, sink events.Sink, logger *slog.Logger) *Service {
	return &Service{repo: repo, sink: sink, logger: logger}
}

// QuarantineLot moves a lot's full sellable quantity into the quarantine
// location and records a recall_quarantine event. Already-quarantined lots are
// a no-op.
func (s *Service) QuarantineLot(ctx context.Context, product, lot, source string) (events.Event, error) {
	snapshot, err := s.repo.GetSnapshot(ctx)
	if err != nil {
		return events.Event{}, fmt.Errorf("inventory: quarantine snapshot: %w", err)
	}
	record, ok := snapshot.Get(product, lot)
	if !ok {
		return events.Event{}, fmt.Errorf("%w: %s/%s", ErrLotNotFound, product, lot)
	}
	moved := record.SellableQty()
	if moved <= 0 {
		return events.Event{}, nil
	}

	for loc, qty := range record.Quantities {
		if loc == LocationQuarantine || qty <= 0 {
			continue
		}
		if _, err := s.repo.ApplyDelta(ctx, product, lot, loc, -qty); err != nil {
			return events.Event{}, fmt.Errorf("inventory: quarantine drain %s: %w", loc, err)
		}
		if _, err := s.repo.ApplyDelta(ctx, product, lot, LocationQuarantine, qty); err != nil {
			// Put the drained quantity back so totals stay balanced.
			if _, restoreErr := s.repo.ApplyDelta(ctx, product, lot, loc, qty); restoreErr != nil {
				s.logger.Error("quarantine restore failed",
					slog.String("product", product),
					slog.String("lot", lot),
					slog.Any("error", restoreErr),
				)
			}
			return events.Event{}, fmt.Errorf("inventory: quarantine fill: %w", err)
		}
	}

	evt := events.New(time.Now().UTC(), events.TypeRecallQuarantine, product, lot, moved, moved, 0, source)
	if err := s.sink.Append(ctx, evt); err != nil {
		return events.Event{}, fmt.Errorf("inventory: quarantine event: %w", err)
	}
	s.logger.Info("lot quarantined",
		slog.String("product", product),
		slog.String("lot", lot),
		slog.Float64("qty", moved),
	)
	return evt, nil
}
