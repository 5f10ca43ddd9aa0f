package application

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fueltrackr/fueltrackr-api/internal/metrics"
)

type fakePinger struct {
	err   error
	block bool
	calls int
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls++
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func TestDatabaseCheckSuccess(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	db := &fakePinger{}

	DatabaseCheck(db, zap.New(core), time.Second, nil)(context.Background())

	assert.Equal(t, 1, db.calls)
	assert.Equal(t, 1, logs.FilterMessage("✅ MongoDB connection established successfully").Len())
}

func TestDatabaseCheckFailureIsLoggedNotPropagated(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	db := &fakePinger{err: errors.New("server selection timeout")}

	DatabaseCheck(db, zap.New(core), time.Second, nil)(context.Background())

	entries := logs.FilterMessage("❌ MongoDB connection failed: server selection timeout").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "server selection timeout", entries[0].ContextMap()["error"])
}

func TestDatabaseCheckBoundsPing(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	done := make(chan struct{})
	go func() {
		DatabaseCheck(&fakePinger{block: true}, zap.New(core), 20*time.Millisecond, nil)(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected ping to be cut off by the timeout")
	}
	assert.Equal(t, 1, logs.FilterMessage("❌ MongoDB connection failed: context deadline exceeded").Len())
}

func TestDatabaseCheckWithoutDatabase(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	DatabaseCheck(nil, zap.New(core), 0, nil)(context.Background())

	assert.Equal(t, 1, logs.FilterMessage("❌ MongoDB connection failed: no database configured").Len())
}

func TestDatabaseCheckRecordsGauge(t *testing.T) {
	m := metrics.New()
	scrape := func() string {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return rec.Body.String()
	}

	DatabaseCheck(&fakePinger{}, zap.NewNop(), time.Second, m)(context.Background())
	assert.Contains(t, scrape(), "fueltrackr_database_up 1")

	DatabaseCheck(&fakePinger{err: errors.New("down")}, zap.NewNop(), time.Second, m)(context.Background())
	assert.Contains(t, scrape(), "fueltrackr_database_up 0")
}
