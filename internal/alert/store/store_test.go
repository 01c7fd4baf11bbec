package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch-trading/tidewatch/internal/alert"
	"github.com/tidewatch-trading/tidewatch/internal/intel"
)

type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *uuid.UUID:
			*v = row[i].(uuid.UUID)
		case *string:
			*v = row[i].(string)
		case *float64:
			*v = row[i].(float64)
		case *int:
			*v = row[i].(int)
		case *time.Time:
			*v = row[i].(time.Time)
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestScanAlerts(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	rows := &fakeRows{rows: [][]any{
		{id, "BTC", "BTCUSDT", "LONG", "high", 95000.0, 2_000_000.0, 6.0, 96100.0, 1.8, "SHORT", 90, now},
	}}

	alerts, err := scanAlerts(rows)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, id, a.ID)
	assert.Equal(t, "BTC", a.Coin)
	assert.Equal(t, alert.DirectionLong, a.Direction)
	assert.Equal(t, alert.SeverityHigh, a.Severity)
	assert.Equal(t, intel.BiasBearish, a.Bias)
	assert.Equal(t, 90, a.Confidence)
}

func TestScanAlerts_RowError(t *testing.T) {
	rows := &fakeRows{err: errors.New("broken connection")}
	_, err := scanAlerts(rows)
	assert.Error(t, err)
}
