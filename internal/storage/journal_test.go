package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	gormlogger "gorm.io/gorm/logger"

	"cdpharness/internal/logger"
	"cdpharness/pkg/model"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(Options{DSN: filepath.Join(t.TempDir(), "journal.sqlite3"), Prefix: "e2e_"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndQuery(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	rid := model.RouteID("r-1")

	require.NoError(t, j.Record(ctx, model.Event{Type: model.EventMatched, Session: "s1", Route: &rid, Alias: "getDog", URL: "http://localhost/api/dogs", Timestamp: 1}))
	require.NoError(t, j.Record(ctx, model.Event{Type: model.EventFulfilled, Session: "s1", Route: &rid, StatusCode: 200, Timestamp: 2}))
	require.NoError(t, j.Record(ctx, model.Event{Type: model.EventUnmatched, Session: "s2", Timestamp: 3}))

	recs, err := j.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "getDog", recs[0].Alias)
	assert.Equal(t, "r-1", recs[0].RouteID)
	assert.Equal(t, 200, recs[1].StatusCode)

	sum, err := j.Summary(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{model.EventMatched: 1, model.EventFulfilled: 1}, sum)
}

func TestTablePrefix(t *testing.T) {
	j := openJournal(t)
	assert.True(t, j.db.Migrator().HasTable("e2e_event_records"))
}

func TestRunDrainsChannel(t *testing.T) {
	j := openJournal(t)
	events := make(chan model.Event, 4)
	events <- model.Event{Type: model.EventBlocked, Session: "s1"}
	events <- model.Event{Type: model.EventBlocked, Session: "s1"}
	close(events)

	done := make(chan struct{})
	go func() {
		j.Run(context.Background(), events)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("journal did not stop after channel close")
	}

	sum, err := j.Summary(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum[model.EventBlocked])
}

func TestGormLoggerForwardsErrors(t *testing.T) {
	var buf bytes.Buffer
	gl := NewGormLogger(logger.NewWithWriter(&buf, "debug")).LogMode(gormlogger.Info)

	ctx := WithSession(context.Background(), "s1")
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, assert.AnError)
	line := buf.String()
	assert.Equal(t, "error", gjson.Get(line, "level").String())
	assert.Equal(t, "s1", gjson.Get(line, "session").String())
	assert.Equal(t, "SELECT 1", gjson.Get(line, "sql").String())

	buf.Reset()
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 2", 1 }, nil)
	assert.Equal(t, "debug", gjson.Get(buf.String(), "level").String())

	buf.Reset()
	silent := gl.LogMode(gormlogger.Silent)
	silent.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 3", 1 }, nil)
	assert.Empty(t, buf.String())
}
