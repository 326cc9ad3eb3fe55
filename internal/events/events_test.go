package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/healthgw/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestBroadcasterDelivers(t *testing.T) {
	b := NewBroadcaster(quietLogger())
	ch1, cancel1 := b.Subscribe(4)
	ch2, cancel2 := b.Subscribe(4)
	defer cancel2()
	assert.Equal(t, 2, b.Subscribers())

	e := NewWriteEvent(models.WriteOutcome{Kind: models.KindWeight, Success: true, Message: "55 Kg"})
	require.NoError(t, b.Publish(context.Background(), e))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, e.ID, got.ID)
			assert.Equal(t, "55 Kg", got.Write.Message)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	cancel1()
	cancel1()
	assert.Equal(t, 1, b.Subscribers())
	_, open := <-ch1
	assert.False(t, open)
}

func TestBroadcasterDropsWhenFull(t *testing.T) {
	b := NewBroadcaster(quietLogger())
	ch, cancel := b.Subscribe(1)
	defer cancel()

	first := NewDatasetEvent(models.NewReadResult(nil))
	second := NewDatasetEvent(models.NewReadResult(nil))
	require.NoError(t, b.Publish(context.Background(), first))
	require.NoError(t, b.Publish(context.Background(), second))

	got := <-ch
	assert.Equal(t, first.ID, got.ID)
	select {
	case <-ch:
		t.Fatal("expected second event to be dropped")
	default:
	}
}

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisPublisher(t *testing.T) {
	fake := &fakeRedis{}
	p := NewRedisPublisher(fake, "healthgw.events")

	e := NewWriteEvent(models.WriteOutcome{Kind: models.KindHeight, Success: false, Message: "bad"})
	require.NoError(t, p.Publish(context.Background(), e))
	assert.Equal(t, "healthgw.events", fake.channel)

	var decoded Event
	require.NoError(t, json.Unmarshal(fake.payload, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, TypeWrite, decoded.Type)
	assert.Equal(t, models.KindHeight, decoded.Write.Kind)

	fake.err = errors.New("connection refused")
	assert.Error(t, p.Publish(context.Background(), e))
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(ctx context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMultiTriesEveryPublisher(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("down")}
	ok := &recordingPublisher{}
	m := Multi{failing, nil, ok}

	err := m.Publish(context.Background(), NewDatasetEvent(models.NewReadResult(nil)))
	assert.Error(t, err)
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}

type recordingWriter struct {
	got  map[models.Kind]int
	fail map[models.Kind]error
}

func (r *recordingWriter) BatchInsertSamples(ctx context.Context, kind models.Kind, samples []models.MetricSample) error {
	if err := r.fail[kind]; err != nil {
		return err
	}
	r.got[kind] += len(samples)
	return nil
}

func TestStoreSink(t *testing.T) {
	w := &recordingWriter{got: map[models.Kind]int{}}
	sink := NewStoreSink(w)

	res := models.NewReadResult([]models.Kind{models.KindHeight, models.KindWeight})
	res.Samples[models.KindWeight] = []models.MetricSample{{TimestampMillis: 1, Value: 70}, {TimestampMillis: 2, Value: 71}}

	require.NoError(t, sink.Publish(context.Background(), NewDatasetEvent(res)))
	assert.Equal(t, map[models.Kind]int{models.KindWeight: 2}, w.got)

	require.NoError(t, sink.Publish(context.Background(), NewWriteEvent(models.WriteOutcome{})))
	assert.Equal(t, map[models.Kind]int{models.KindWeight: 2}, w.got)
}

func TestStoreSinkContinuesAfterFailure(t *testing.T) {
	diskFull := errors.New("disk full")
	w := &recordingWriter{
		got:  map[models.Kind]int{},
		fail: map[models.Kind]error{models.KindHeight: diskFull, models.KindWeight: diskFull},
	}
	sink := NewStoreSink(w)

	res := models.NewReadResult(nil)
	for _, kind := range []models.Kind{models.KindHeight, models.KindWeight, models.KindHeartRate, models.KindBloodGlucose} {
		res.Samples[kind] = []models.MetricSample{{TimestampMillis: 1, Value: 70}}
	}

	err := sink.Publish(context.Background(), NewDatasetEvent(res))
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)
	assert.Contains(t, err.Error(), "failed to store height samples")
	assert.Contains(t, err.Error(), "failed to store weight samples")
	assert.Equal(t, map[models.Kind]int{models.KindHeartRate: 1, models.KindBloodGlucose: 1}, w.got)
}

func TestLate(t *testing.T) {
	var late Late
	e := NewWriteEvent(models.WriteOutcome{Kind: models.KindWeight})

	require.NoError(t, late.Publish(context.Background(), e))

	target := &recordingPublisher{}
	late.Set(target)
	require.NoError(t, late.Publish(context.Background(), e))
	require.Len(t, target.events, 1)
	assert.Equal(t, e.ID, target.events[0].ID)
}
