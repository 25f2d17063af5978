// Package earnings reports the staking yield of an address from its confirmed
// ledger history and the recorded rate curve.
package earnings

import (
	"context"
	"sort"

	"github.com/holiman/uint256"
	"github.com/runestake/settlement/accounting"
	"github.com/runestake/settlement/chaincfg"
	"github.com/runestake/settlement/model"
	"github.com/runestake/settlement/stores/ledger"
	"github.com/runestake/settlement/stores/ratehistory"
	"github.com/runestake/settlement/ulogger"
	"github.com/shopspring/decimal"
)

type Service struct {
	logger ulogger.Logger
	params *chaincfg.Params
	ledger ledger.Store
	rates  ratehistory.Store
}

func New(logger ulogger.Logger, params *chaincfg.Params, ledgerStore ledger.Store, rateStore ratehistory.Store) *Service {
	return &Service{
		logger: logger.New("earnings"),
		params: params,
		ledger: ledgerStore,
		rates:  rateStore,
	}
}

// Earnings runs FIFO accounting over the mined stakes and unstakes of address.
func (s *Service) Earnings(ctx context.Context, address string) (*accounting.Earnings, error) {
	if _, err := s.params.DecodeAddress(address); err != nil {
		return nil, err
	}

	rows, err := s.ledger.HistoryOf(ctx, address)
	if err != nil {
		return nil, err
	}

	samples, err := s.rates.HistoricSamples(ctx)
	if err != nil {
		return nil, err
	}

	earnings, err := accounting.Compute(Values(rows), samples)
	if err != nil {
		return nil, err
	}

	s.logger.Debugf("[Earnings] %s: %d rows, realized %s, unrealized %s", address, len(rows), earnings.Realized, earnings.Unrealized)

	return earnings, nil
}

// Rates returns the recorded rate curve.
func (s *Service) Rates(ctx context.Context) ([]model.RateSample, error) {
	return s.rates.HistoricSamples(ctx)
}

// Values turns ledger rows into signed receipt movements ordered by block.
// Stakes add their minted receipt, unstakes remove the receipt they burned.
// Rows that are not mined yet are left out.
func Values(rows []*model.LedgerRow) []accounting.Value {
	values := make([]accounting.Value, 0, len(rows))

	for _, row := range rows {
		if !row.Confirmed() || row.StakedAmount == nil || row.StakedAmount.IsZero() {
			continue
		}

		amount := toDecimal(row.StakedAmount)
		if row.Kind == model.LedgerKindUnstake {
			amount = amount.Neg()
		}

		values = append(values, accounting.Value{Block: *row.Block, Amount: amount})
	}

	sort.SliceStable(values, func(i, j int) bool {
		return values[i].Block < values[j].Block
	})

	return values
}

func toDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), 0)
}
