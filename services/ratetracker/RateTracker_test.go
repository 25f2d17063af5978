package ratetracker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/services/custodian"
	"github.com/runestake/settlement/services/indexer"
	ratesql "github.com/runestake/settlement/stores/ratehistory/sql"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type confirmer struct {
	calls int
	err   error
}

func (c *confirmer) ConfirmPending(_ context.Context) (int, error) {
	c.calls++
	return 0, c.err
}

type fixture struct {
	tracker   *RateTracker
	indexer   *indexer.Mock
	signer    *custodian.LocalSigner
	rates     *ratesql.SQL
	confirmer *confirmer
}

func newFixture(t *testing.T) *fixture {
	tSettings := test.CreateBaseTestSettings(t)
	tSettings.Custodian.Circulating = "1000"
	tSettings.Custodian.Balance = "1100"
	tSettings.RateTracker.PollInterval = time.Second

	signer, err := custodian.NewLocalSigner(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)

	rates, err := ratesql.New(ulogger.TestLogger{}, tSettings.Ledger.StoreURL, tSettings)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = rates.Close()
	})

	m := &indexer.Mock{}
	c := &confirmer{}

	return &fixture{
		tracker:   New(ulogger.TestLogger{}, tSettings, m, signer, rates, c),
		indexer:   m,
		signer:    signer,
		rates:     rates,
		confirmer: c,
	}
}

func TestPoll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.indexer.On("TipHeight", mock.Anything).Return(uint32(100), nil).Once()
	require.NoError(t, f.tracker.Poll(ctx))

	// same tip, nothing to do
	f.indexer.On("TipHeight", mock.Anything).Return(uint32(100), nil).Once()
	require.NoError(t, f.tracker.Poll(ctx))
	assert.Equal(t, 1, f.confirmer.calls)

	// new block, unchanged rate
	f.indexer.On("TipHeight", mock.Anything).Return(uint32(101), nil).Once()
	require.NoError(t, f.tracker.Poll(ctx))
	assert.Equal(t, 2, f.confirmer.calls)

	require.NoError(t, f.signer.SetComponents("1000", "1200"))

	f.indexer.On("TipHeight", mock.Anything).Return(uint32(102), nil).Once()
	require.NoError(t, f.tracker.Poll(ctx))

	samples, err := f.rates.HistoricSamples(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, uint32(100), samples[0].Block)
	assert.Equal(t, "1.1", samples[0].Rate.String())
	assert.Equal(t, uint32(102), samples[1].Block)
	assert.Equal(t, "1.2", samples[1].Rate.String())
}

func TestPollFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.indexer.On("TipHeight", mock.Anything).Return(uint32(0), errors.NewServiceError("indexer down")).Once()
	require.ErrorIs(t, f.tracker.Poll(ctx), errors.ErrServiceError)

	status, _, _ := f.tracker.Health(ctx, false)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	// a failed confirmation is retried on the next poll of the same tip
	f.confirmer.err = errors.NewStorageError("ledger down")
	f.indexer.On("TipHeight", mock.Anything).Return(uint32(100), nil)
	require.ErrorIs(t, f.tracker.Poll(ctx), errors.ErrStorageError)

	f.confirmer.err = nil
	require.NoError(t, f.tracker.Poll(ctx))
	assert.Equal(t, 2, f.confirmer.calls)

	status, _, _ = f.tracker.Health(ctx, false)
	assert.Equal(t, http.StatusOK, status)
}

func TestStartStopsWithContext(t *testing.T) {
	f := newFixture(t)
	f.indexer.On("TipHeight", mock.Anything).Return(uint32(100), nil)

	require.NoError(t, f.tracker.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	readyCh := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- f.tracker.Start(ctx, readyCh)
	}()

	<-readyCh

	require.Eventually(t, func() bool {
		status, _, _ := f.tracker.Health(context.Background(), false)
		return status == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
