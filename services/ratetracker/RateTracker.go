// Package ratetracker samples the receipt redemption rate once per block and
// keeps the ledger in step with the chain.
package ratetracker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/services/custodian"
	"github.com/runestake/settlement/services/indexer"
	"github.com/runestake/settlement/settings"
	"github.com/runestake/settlement/stores/ratehistory"
	"github.com/runestake/settlement/ulogger"
)

// Confirmer records the mined settlements, see settlement.Service.ConfirmPending.
type Confirmer interface {
	ConfirmPending(ctx context.Context) (int, error)
}

type RateTracker struct {
	logger    ulogger.Logger
	settings  *settings.Settings
	indexer   indexer.ClientI
	custodian custodian.ClientI
	rates     ratehistory.Store
	confirmer Confirmer
	lastTip   atomic.Uint32
	lastPoll  atomic.Int64
}

func New(logger ulogger.Logger, tSettings *settings.Settings, indexerClient indexer.ClientI, custodianClient custodian.ClientI,
	rateStore ratehistory.Store, confirmer Confirmer) *RateTracker {
	initPrometheusMetrics()

	return &RateTracker{
		logger:    logger.New("ratetracker"),
		settings:  tSettings,
		indexer:   indexerClient,
		custodian: custodianClient,
		rates:     rateStore,
		confirmer: confirmer,
	}
}

func (r *RateTracker) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	last := r.lastPoll.Load()
	if last == 0 {
		return http.StatusServiceUnavailable, "no poll yet", nil
	}

	if since := time.Since(time.UnixMilli(last)); since > 3*r.settings.RateTracker.PollInterval {
		return http.StatusServiceUnavailable, "last successful poll " + since.Truncate(time.Second).String() + " ago", nil
	}

	return http.StatusOK, "OK", nil
}

func (r *RateTracker) Init(_ context.Context) error {
	if r.settings.RateTracker.PollInterval <= 0 {
		return errors.NewConfigurationError("ratetracker_pollInterval must be positive")
	}

	return nil
}

// Start polls until ctx is done. A failed poll is logged and retried on the
// next tick.
func (r *RateTracker) Start(ctx context.Context, readyCh chan<- struct{}) error {
	close(readyCh)

	if err := r.Poll(ctx); err != nil {
		r.logger.Errorf("[RateTracker] poll failed: %v", err)
	}

	ticker := time.NewTicker(r.settings.RateTracker.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Poll(ctx); err != nil {
				r.logger.Errorf("[RateTracker] poll failed: %v", err)
			}
		}
	}
}

func (r *RateTracker) Stop(_ context.Context) error {
	return nil
}

// Poll samples the rate and confirms pending settlements when the tip moved
// since the last successful poll.
func (r *RateTracker) Poll(ctx context.Context) error {
	start := time.Now()

	defer func() {
		prometheusRateTrackerPollDuration.Observe(float64(time.Since(start).Microseconds()) / 1_000)
	}()

	tip, err := r.indexer.TipHeight(ctx)
	if err != nil {
		prometheusRateTrackerPollErrors.Inc()
		return err
	}

	if tip <= r.lastTip.Load() {
		r.lastPoll.Store(time.Now().UnixMilli())
		return nil
	}

	components, err := r.custodian.ExchangeRateComponents(ctx)
	if err != nil {
		prometheusRateTrackerPollErrors.Inc()
		return err
	}

	added, err := r.rates.AppendSample(ctx, tip, components.Balance, components.Circulating)
	if err != nil {
		prometheusRateTrackerPollErrors.Inc()
		return err
	}

	if added {
		prometheusRateTrackerSamples.Inc()
		r.logger.Infof("[RateTracker] new rate %s/%s at block %d", components.Balance.Dec(), components.Circulating.Dec(), tip)
	}

	if r.confirmer != nil {
		if _, err = r.confirmer.ConfirmPending(ctx); err != nil {
			prometheusRateTrackerPollErrors.Inc()
			return err
		}
	}

	r.lastTip.Store(tip)
	r.lastPoll.Store(time.Now().UnixMilli())
	prometheusRateTrackerTip.Set(float64(tip))

	return nil
}
