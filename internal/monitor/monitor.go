// Package monitor polls every registered device on a cron schedule,
// journaling each drained sample batch and optionally pushing it upstream.
package monitor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/devhack/hacklet/internal/ctxlog"
	"github.com/devhack/hacklet/internal/journal"
	"github.com/devhack/hacklet/internal/wire"
)

// Sampler is the slice of the dongle session the monitor needs.
type Sampler interface {
	SelectNetwork(ctx context.Context, network uint16) error
	RequestSamples(ctx context.Context, network, channel uint16) (*wire.SamplesReply, error)
}

// Recorder is the slice of the journal the monitor needs.
type Recorder interface {
	Devices() []*journal.Device
	AppendSamples(reply *wire.SamplesReply) (*journal.SampleRecord, error)
}

// Pusher uploads a recorded batch. Optional.
type Pusher interface {
	PushSamples(ctx context.Context, rec *journal.SampleRecord) error
}

// Monitor drives the polling loop.
type Monitor struct {
	sampler  Sampler
	recorder Recorder
	pusher   Pusher
	spec     string
}

// New builds a Monitor. pusher may be nil.
func New(sampler Sampler, recorder Recorder, pusher Pusher, spec string) *Monitor {
	return &Monitor{sampler: sampler, recorder: recorder, pusher: pusher, spec: spec}
}

// Run installs the cron entry and blocks until the context is cancelled.
// In-flight polls finish before Run returns.
func (m *Monitor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	c := cron.New()
	if _, err := c.AddFunc(m.spec, func() { m.Poll(ctx) }); err != nil {
		return fmt.Errorf("monitor: bad schedule %q: %w", m.spec, err)
	}

	logger.Info("Monitor started.", "schedule", m.spec)
	c.Start()
	<-ctx.Done()

	// Stop returns a context that completes once running jobs drain.
	<-c.Stop().Done()
	logger.Info("Monitor stopped.")
	return nil
}

// Poll drains samples from every registered device once. A failing device
// is logged and skipped so one dead socket cannot starve the rest.
func (m *Monitor) Poll(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)

	devices := m.recorder.Devices()
	if len(devices) == 0 {
		logger.Warn("Monitor tick with no registered devices.")
		return
	}

	for _, d := range devices {
		if err := m.pollDevice(ctx, d); err != nil {
			logger.Error("Device poll failed.",
				"network_id", fmt.Sprintf("0x%04X", d.NetworkID), "error", err)
		}
	}
}

func (m *Monitor) pollDevice(ctx context.Context, d *journal.Device) error {
	if err := m.sampler.SelectNetwork(ctx, d.NetworkID); err != nil {
		return err
	}

	// Channel zero holds the strip's aggregate readings.
	reply, err := m.sampler.RequestSamples(ctx, d.NetworkID, 0)
	if err != nil {
		return err
	}

	rec, err := m.recorder.AppendSamples(reply)
	if err != nil {
		return err
	}
	if m.pusher != nil {
		return m.pusher.PushSamples(ctx, rec)
	}
	return nil
}
