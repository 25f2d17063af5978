package settlement

import (
	"context"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/model"
)

// ConfirmPending asks the indexer about every broadcast ledger transaction
// that is not mined yet and stores the block of those that are. It returns
// the number of rows updated.
func (s *Service) ConfirmPending(ctx context.Context) (int, error) {
	rows, err := s.ledger.Pending(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0

	for _, row := range rows {
		if err = ctx.Err(); err != nil {
			return updated, errors.NewContextCanceledError("[Settlement] confirming pending rows", err)
		}

		var patch model.LedgerPatch

		switch {
		case row.Block == nil && row.Psbt != nil:
			block, ok := s.minedAt(ctx, row.TxID)
			if !ok {
				continue
			}

			patch = model.LedgerPatch{Block: &block}

		case row.ClaimTxID != nil && row.ClaimBlock == nil:
			block, ok := s.minedAt(ctx, *row.ClaimTxID)
			if !ok {
				continue
			}

			patch = model.LedgerPatch{ClaimBlock: &block}

		default:
			// built but never broadcast
			continue
		}

		if err = s.ledger.Update(ctx, []int64{row.ID}, patch); err != nil {
			s.logger.Errorf("[Settlement] could not update ledger row %d: %v", row.ID, err)
			continue
		}

		prometheusSettlementMined.WithLabelValues(string(row.Kind)).Inc()

		updated++
	}

	if updated > 0 {
		s.logger.Infof("[Settlement] %d of %d pending ledger rows mined", updated, len(rows))
	}

	return updated, nil
}

func (s *Service) minedAt(ctx context.Context, txID string) (uint32, bool) {
	tx, err := s.indexer.GetTransaction(ctx, txID)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.logger.Warnf("[Settlement] could not look up %s: %v", txID, err)
		}

		return 0, false
	}

	if !tx.Confirmed {
		return 0, false
	}

	return tx.BlockHeight, true
}
