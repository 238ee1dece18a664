package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tidwall/btree"
	"github.com/tidwall/gjson"

	"github.com/devhack/hacklet/internal/wire"
)

// Record kinds as written to the journal file.
const (
	kindDevice  = "device"
	kindSamples = "samples"
)

// Device is a commissioned socket network.
type Device struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	NetworkID      uint16    `json:"network_id"`
	DeviceID       uint64    `json:"device_id"`
	CommissionedAt time.Time `json:"commissioned_at"`
}

// SamplePoint is one reading inside a SampleRecord.
type SamplePoint struct {
	Watts uint8 `json:"watts"`
	Age   uint8 `json:"age"`
}

// SampleRecord is one drained batch of readings from a socket.
type SampleRecord struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"`
	NetworkID   uint16        `json:"network_id"`
	ChannelID   uint16        `json:"channel_id"`
	DeviceTime  uint32        `json:"device_time"`
	StoredCount uint32        `json:"stored_count"`
	Samples     []SamplePoint `json:"samples"`
	TakenAt     time.Time     `json:"taken_at"`
}

// byDevice orders the index by network id, then hardware id.
func byDevice(a, b interface{}) bool {
	d1 := a.(*Device)
	d2 := b.(*Device)
	if d1.NetworkID == d2.NetworkID {
		return d1.DeviceID < d2.DeviceID
	}
	return d1.NetworkID < d2.NetworkID
}

// Journal is an open journal file plus its replayed device index.
type Journal struct {
	path      string
	f         *os.File
	devices   *btree.BTree
	truncated bool
	mu        sync.RWMutex
	now       func() time.Time
}

// Open opens (creating if needed) the journal at path and replays it.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "journal: open %s", path)
	}

	j := &Journal{
		path:    path,
		f:       f,
		devices: btree.NewNonConcurrent(byDevice),
		now:     time.Now,
	}
	if err := j.replay(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return j, nil
}

// replay scans the file and rebuilds the device index. A torn final line
// (a crash mid-append) is tolerated: it is flagged and truncated away so
// later appends start on a clean record boundary. Corruption anywhere
// else is an error.
func (j *Journal) replay() error {
	reader := bufio.NewReader(j.f)

	// good is the byte offset just past the last cleanly replayed record.
	var good, offset int64
	var pendingErr error
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			offset += int64(len(line))
			record := bytes.TrimSuffix(line, []byte{'\n'})
			switch {
			case len(record) == 0:
				good = offset
			case pendingErr != nil:
				// The bad line was not the last one. Refuse the file.
				return pendingErr
			default:
				if err := j.indexRecord(record); err != nil {
					pendingErr = err
				} else {
					good = offset
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errors.Wrapf(readErr, "journal: read %s", j.path)
		}
	}

	if pendingErr != nil {
		// Trailing torn write: keep what replayed cleanly and drop the
		// torn bytes so the next append does not fuse with them.
		if err := j.f.Truncate(good); err != nil {
			return errors.Wrapf(err, "journal: drop torn tail of %s", j.path)
		}
		j.truncated = true
	}
	return nil
}

// indexRecord replays one journal line into the in-memory state.
func (j *Journal) indexRecord(line []byte) error {
	if !gjson.ValidBytes(line) {
		return errors.Errorf("journal: corrupt record in %s", j.path)
	}

	switch gjson.GetBytes(line, "kind").String() {
	case kindDevice:
		var d Device
		if err := json.Unmarshal(line, &d); err != nil {
			return errors.Wrapf(err, "journal: corrupt device record in %s", j.path)
		}
		j.devices.Set(&d)
	case kindSamples:
		// Sample batches are not indexed, only retained on disk.
	default:
		return errors.Errorf("journal: unknown record kind %q in %s",
			gjson.GetBytes(line, "kind").String(), j.path)
	}
	return nil
}

// Truncated reports whether replay dropped a torn trailing record.
func (j *Journal) Truncated() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.truncated
}

// RegisterDevice appends a device registration and indexes it.
func (j *Journal) RegisterDevice(b *wire.Broadcast) (*Device, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	d := &Device{
		ID:             uuid.NewString(),
		Kind:           kindDevice,
		NetworkID:      b.NetworkID,
		DeviceID:       b.DeviceID,
		CommissionedAt: j.now().UTC(),
	}
	if err := j.append(d); err != nil {
		return nil, err
	}
	j.devices.Set(d)
	return d, nil
}

// AppendSamples appends one drained batch.
func (j *Journal) AppendSamples(reply *wire.SamplesReply) (*SampleRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rec := &SampleRecord{
		ID:          uuid.NewString(),
		Kind:        kindSamples,
		NetworkID:   reply.NetworkID,
		ChannelID:   reply.ChannelID,
		DeviceTime:  reply.DeviceTime,
		StoredCount: reply.StoredCount,
		Samples:     make([]SamplePoint, 0, len(reply.Samples)),
		TakenAt:     j.now().UTC(),
	}
	for _, s := range reply.Samples {
		rec.Samples = append(rec.Samples, SamplePoint{Watts: s.Watts, Age: s.Age})
	}
	if err := j.append(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (j *Journal) append(v interface{}) error {
	line, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "journal: marshal record")
	}
	line = append(line, '\n')
	if _, err := j.f.Write(line); err != nil {
		return errors.Wrapf(err, "journal: append to %s", j.path)
	}
	return nil
}

// Devices returns every registered device in network id order.
func (j *Journal) Devices() []*Device {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*Device, 0, j.devices.Len())
	j.devices.Ascend(nil, func(item interface{}) bool {
		out = append(out, item.(*Device))
		return true
	})
	return out
}

// Close syncs and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.f.Sync(); err != nil {
		_ = j.f.Close()
		return errors.Wrapf(err, "journal: sync %s", j.path)
	}
	return errors.Wrapf(j.f.Close(), "journal: close %s", j.path)
}
