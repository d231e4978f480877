package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliverSignsBody(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ev := &Event{Type: EventCheckpoint, RunID: "r1", Site: "rotten_tomatoes", Data: CheckpointData{Path: "/tmp/x.csv", Records: 50}}
	require.NoError(t, Deliver(context.Background(), srv.Client(), srv.URL, "s3cret", ev))

	assert.Equal(t, "sha256="+Sign("s3cret", gotBody), gotSig)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "checkpoint.flushed", decoded["type"])
	assert.Equal(t, "rotten_tomatoes", decoded["site"])
	assert.Equal(t, float64(50), decoded["data"].(map[string]any)["records"])
}

func TestDeliverWithoutSecretHasNoSignature(t *testing.T) {
	var sig atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig.Store(r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, Deliver(context.Background(), srv.Client(), srv.URL, "", &Event{Type: EventCompleted}))
	assert.Equal(t, "", sig.Load())
}

func TestDeliverReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Deliver(context.Background(), srv.Client(), srv.URL, "", &Event{Type: EventFailed})
	assert.ErrorContains(t, err, "502")
}

func TestNotifierRetriesAndDrains(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "")
	n.delays = []time.Duration{0, 10 * time.Millisecond, 10 * time.Millisecond}
	n.now = func() time.Time { return time.Unix(1768780800, 0) }

	n.Notify(Event{Type: EventCompleted, Site: "naver_movie"})
	require.True(t, n.Wait(5*time.Second))
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotifierStampsTimestamp(t *testing.T) {
	var (
		mu  sync.Mutex
		got Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "")
	n.now = func() time.Time { return time.Unix(1768780800, 0) }
	n.Notify(Event{Type: EventCheckpoint})
	require.True(t, n.Wait(5*time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int64(1768780800), got.Timestamp)
}

func TestNilNotifierIsInert(t *testing.T) {
	n := NewNotifier("", "secret")
	assert.Nil(t, n)
	n.Notify(Event{Type: EventCompleted})
	assert.True(t, n.Wait(time.Millisecond))
}
