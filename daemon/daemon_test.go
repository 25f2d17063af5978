package daemon

import (
	"net/url"
	"testing"
	"time"

	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/ulogger"
	"github.com/runestake/settlement/util/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoggerFactory(string) ulogger.Logger {
	return ulogger.TestLogger{}
}

func TestDaemonStartStop(t *testing.T) {
	tSettings := test.CreateBaseTestSettings(t)
	tSettings.API.HTTPListenAddress = "127.0.0.1:0"
	tSettings.RateTracker.Enabled = false

	d := New(WithLoggerFactory(testLoggerFactory))

	readyCh := make(chan struct{})
	errCh := make(chan error, 1)

	go func() {
		errCh <- d.Start(ulogger.TestLogger{}, tSettings, readyCh)
	}()

	select {
	case <-readyCh:
	case err := <-errCh:
		t.Fatalf("daemon stopped before it was ready: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not become ready")
	}

	require.NoError(t, d.Stop(10*time.Second))
	require.NoError(t, <-errCh)

	assert.Nil(t, d.Stores().ledgerStore)
	assert.Nil(t, d.Stores().rateStore)
}

func TestDaemonRejectsUnknownLockStore(t *testing.T) {
	tSettings := test.CreateBaseTestSettings(t)
	tSettings.Lock.StoreURL = &url.URL{Scheme: "etcd", Host: "localhost"}

	d := New(WithLoggerFactory(testLoggerFactory))

	err := d.Start(ulogger.TestLogger{}, tSettings)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestStoresAreShared(t *testing.T) {
	tSettings := test.CreateBaseTestSettings(t)
	stores := &Stores{}

	first, err := stores.GetLockStore(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)

	second, err := stores.GetLockStore(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)

	assert.Same(t, first, second)

	ledgerStore, err := stores.GetLedgerStore(ulogger.TestLogger{}, tSettings)
	require.NoError(t, err)
	require.NotNil(t, ledgerStore)

	stores.Close(ulogger.TestLogger{})
	assert.Nil(t, stores.ledgerStore)
}
