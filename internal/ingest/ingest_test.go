package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	historydomain "github.com/smallbiznis/harvestprice/internal/pricehistory/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHistory struct {
	mu       sync.Mutex
	requests []historydomain.RecordRequest
}

func (r *recordingHistory) Record(_ context.Context, req historydomain.RecordRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recordingHistory) Query(context.Context, string, time.Duration) ([]historydomain.Observation, error) {
	return nil, nil
}

func (r *recordingHistory) Prune(context.Context, time.Duration) (int64, error) { return 0, nil }

func (r *recordingHistory) Recorded() []historydomain.RecordRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]historydomain.RecordRequest(nil), r.requests...)
}

// fakeReader hands out queued messages, then blocks until cancelled.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
	fetchErr  error
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if f.fetchErr != nil {
		err := f.fetchErr
		f.fetchErr = nil
		f.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeReader) Committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func TestHandleRecordsSale(t *testing.T) {
	history := &recordingHistory{}
	h := NewHandler(zap.NewNop(), history)

	err := h.Handle(context.Background(), kafka.Message{
		Value: []byte(`{"order_id":"o-1","product_id":"p-9","commodity":"Tomato","price":"24.50","quantity":3,"region":"karnataka"}`),
	})
	require.NoError(t, err)

	got := history.Recorded()
	require.Len(t, got, 1)
	assert.Equal(t, historydomain.RecordRequest{
		ProductRef: "p-9",
		Commodity:  "Tomato",
		Price:      24.5,
		Quantity:   3,
		Region:     "karnataka",
		Channel:    historydomain.ChannelKafka,
	}, got[0])
}

func TestHandleRejectsMalformedEvents(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"commodity":`,
		"missing commodity": `{"price":10,"quantity":1}`,
		"zero price":        `{"commodity":"onion","price":0,"quantity":1}`,
		"negative quantity": `{"commodity":"onion","price":"12","quantity":"-2"}`,
		"non numeric price": `{"commodity":"onion","price":"cheap","quantity":1}`,
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			history := &recordingHistory{}
			err := NewHandler(zap.NewNop(), history).Handle(context.Background(), kafka.Message{Value: []byte(payload)})
			assert.ErrorIs(t, err, ErrMalformedEvent)
			assert.Empty(t, history.Recorded())
		})
	}
}

func TestConsumerCommitsEveryMessage(t *testing.T) {
	history := &recordingHistory{}
	reader := &fakeReader{
		fetchErr: errors.New("broker hiccup"),
		queue: []kafka.Message{
			{Offset: 1, Value: []byte(`{"commodity":"potato","price":18,"quantity":2}`)},
			{Offset: 2, Value: []byte(`garbage`)},
			{Offset: 3, Value: []byte(`{"commodity":"onion","price":"31","quantity":"1.5"}`)},
		},
	}
	c := NewConsumer(zap.NewNop(), reader, NewHandler(zap.NewNop(), history))
	c.Start()

	require.Eventually(t, func() bool {
		return len(reader.Committed()) == 3
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, []int64{1, 2, 3}, reader.Committed())
	assert.True(t, reader.closed)

	got := history.Recorded()
	require.Len(t, got, 2)
	assert.Equal(t, "potato", got[0].Commodity)
	assert.Equal(t, 1.5, got[1].Quantity)
}
