package push

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devhack/hacklet/internal/config"
	"github.com/devhack/hacklet/internal/journal"
)

func sampleRecord() *journal.SampleRecord {
	return &journal.SampleRecord{
		ID:        "rec-1",
		Kind:      "samples",
		NetworkID: 0x1234,
		ChannelID: 1,
		Samples:   []journal.SamplePoint{{Watts: 40, Age: 1}},
	}
}

func TestPushSamples(t *testing.T) {
	t.Parallel()

	t.Run("posts the record as JSON with the bearer token", func(t *testing.T) {
		t.Parallel()

		var gotAuth string
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		client := New(&config.Push{URL: srv.URL, Token: "s3cr3t"})
		defer client.Close()

		err := client.PushSamples(context.Background(), sampleRecord())
		require.NoError(t, err)
		assert.Equal(t, "Bearer s3cr3t", gotAuth)

		var decoded journal.SampleRecord
		require.NoError(t, json.Unmarshal(gotBody, &decoded))
		assert.Equal(t, "rec-1", decoded.ID)
		require.Len(t, decoded.Samples, 1)
		assert.Equal(t, uint8(40), decoded.Samples[0].Watts)
	})

	t.Run("rejects non-2xx answers", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := New(&config.Push{URL: srv.URL})
		defer client.Close()

		err := client.PushSamples(context.Background(), sampleRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("reports transport failures", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // nothing listening anymore

		client := New(&config.Push{URL: srv.URL})
		defer client.Close()

		err := client.PushSamples(context.Background(), sampleRecord())
		require.Error(t, err)
	})
}
