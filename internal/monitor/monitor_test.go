package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devhack/hacklet/internal/journal"
	"github.com/devhack/hacklet/internal/wire"
)

type fakeSampler struct {
	selected  []uint16
	sampled   []uint16
	selectErr error
}

func (f *fakeSampler) SelectNetwork(_ context.Context, network uint16) error {
	f.selected = append(f.selected, network)
	return f.selectErr
}

func (f *fakeSampler) RequestSamples(_ context.Context, network, _ uint16) (*wire.SamplesReply, error) {
	f.sampled = append(f.sampled, network)
	return &wire.SamplesReply{
		NetworkID: network,
		Samples:   []wire.Sample{{Watts: 40, Age: 1}},
	}, nil
}

type fakeRecorder struct {
	devices  []*journal.Device
	appended []*journal.SampleRecord
}

func (f *fakeRecorder) Devices() []*journal.Device {
	return f.devices
}

func (f *fakeRecorder) AppendSamples(reply *wire.SamplesReply) (*journal.SampleRecord, error) {
	rec := &journal.SampleRecord{ID: "rec", NetworkID: reply.NetworkID}
	f.appended = append(f.appended, rec)
	return rec, nil
}

type fakePusher struct {
	pushed []*journal.SampleRecord
}

func (f *fakePusher) PushSamples(_ context.Context, rec *journal.SampleRecord) error {
	f.pushed = append(f.pushed, rec)
	return nil
}

func TestPoll(t *testing.T) {
	t.Parallel()

	t.Run("drains every registered device and pushes", func(t *testing.T) {
		t.Parallel()

		sampler := &fakeSampler{}
		recorder := &fakeRecorder{devices: []*journal.Device{
			{NetworkID: 0x1000},
			{NetworkID: 0x2000},
		}}
		pusher := &fakePusher{}

		m := New(sampler, recorder, pusher, "@every 1m")
		m.Poll(context.Background())

		assert.Equal(t, []uint16{0x1000, 0x2000}, sampler.selected)
		assert.Equal(t, []uint16{0x1000, 0x2000}, sampler.sampled)
		assert.Len(t, recorder.appended, 2)
		assert.Len(t, pusher.pushed, 2)
	})

	t.Run("a failing device does not starve the rest", func(t *testing.T) {
		t.Parallel()

		sampler := &fakeSampler{selectErr: errors.New("no answer")}
		recorder := &fakeRecorder{devices: []*journal.Device{
			{NetworkID: 0x1000},
			{NetworkID: 0x2000},
		}}

		m := New(sampler, recorder, nil, "@every 1m")
		m.Poll(context.Background())

		// Both devices were attempted, nothing recorded.
		assert.Len(t, sampler.selected, 2)
		assert.Empty(t, recorder.appended)
	})

	t.Run("works without a pusher", func(t *testing.T) {
		t.Parallel()

		sampler := &fakeSampler{}
		recorder := &fakeRecorder{devices: []*journal.Device{{NetworkID: 0x1000}}}

		m := New(sampler, recorder, nil, "@every 1m")
		m.Poll(context.Background())

		assert.Len(t, recorder.appended, 1)
	})
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("rejects a bad cron spec", func(t *testing.T) {
		t.Parallel()

		m := New(&fakeSampler{}, &fakeRecorder{}, nil, "not a schedule")
		err := m.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad schedule")
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		m := New(&fakeSampler{}, &fakeRecorder{}, nil, "@every 1h")
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- m.Run(ctx) }()

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("monitor did not stop after cancellation")
		}
	})
}
