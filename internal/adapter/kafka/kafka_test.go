package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/wildfire-etl/internal/domain"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testChange(action domain.ChangeAction) domain.RecordChange {
	return domain.RecordChange{
		Action: action,
		Record: domain.WildfireRecord{
			ID:         uuid.MustParse("6f1c1d3e-9a53-4a55-b0a4-2c1f0c7d8e11"),
			Name:       "Incendio_Beni_20240901_1300",
			DetectedAt: time.Date(2024, 9, 1, 13, 0, 0, 0, time.UTC),
			Latitude:   -14.8,
			Longitude:  -64.9,
			Region:     &domain.Region{ID: 8, Name: "Beni", Code: "BE"},
			Intensity:  0.9,
			Severity:   domain.SeverityCritical,
			Status:     domain.StatusActive,
			UpdatedAt:  time.Date(2024, 9, 1, 15, 30, 0, 0, time.UTC),
		},
	}
}

func TestSerializeToMessage(t *testing.T) {
	change := testChange(domain.ActionCreated)

	msg, err := serializeToMessage(change)
	require.NoError(t, err)

	assert.Equal(t, []byte("6f1c1d3e-9a53-4a55-b0a4-2c1f0c7d8e11"), msg.Key)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "action", msg.Headers[0].Key)
	assert.Equal(t, []byte("created"), msg.Headers[0].Value)
	assert.Equal(t, "updated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-09-01T15:30:00Z"), msg.Headers[1].Value)

	var decoded domain.RecordChange
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, domain.ActionCreated, decoded.Action)
	assert.Equal(t, "Beni", decoded.Record.RegionName())
	assert.Equal(t, domain.SeverityCritical, decoded.Record.Severity)
}

func TestWriter_LoadBatch(t *testing.T) {
	fw := &fakeWriter{}
	w := &Writer{writer: fw, topic: "wildfire-records", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := w.LoadBatch(context.Background(), []domain.RecordChange{
		testChange(domain.ActionCreated),
		testChange(domain.ActionUpdated),
	})
	require.NoError(t, err)
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, []byte("updated"), fw.msgs[1].Headers[0].Value)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestWriter_LoadBatch_Empty(t *testing.T) {
	fw := &fakeWriter{err: errors.New("must not be called")}
	w := &Writer{writer: fw, topic: "wildfire-records", logger: slog.Default()}

	require.NoError(t, w.LoadBatch(context.Background(), nil))
}

func TestWriter_LoadBatch_Error(t *testing.T) {
	fw := &fakeWriter{err: errors.New("leader not available")}
	w := &Writer{writer: fw, topic: "wildfire-records", logger: slog.Default()}

	err := w.LoadBatch(context.Background(), []domain.RecordChange{testChange(domain.ActionCreated)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wildfire-records")
	assert.Contains(t, err.Error(), "leader not available")
}
