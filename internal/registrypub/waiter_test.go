package registrypub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shipgrid/internal/registrypub"
	"github.com/vk/shipgrid/internal/release"
)

func TestDelayWaiter_ZeroDelayReturnsImmediately(t *testing.T) {
	t.Parallel()

	w := &registrypub.DelayWaiter{}
	start := time.Now()
	err := w.Wait(context.Background(), []release.Package{{Name: "lib"}})

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestDelayWaiter_HonorsCancellation(t *testing.T) {
	t.Parallel()

	w := &registrypub.DelayWaiter{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- w.Wait(ctx, nil)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

// newPollWaiter builds a waiter against a test server with a tight retry
// loop so index-propagation scenarios run in milliseconds.
func newPollWaiter(t *testing.T, url string) *registrypub.PollWaiter {
	t.Helper()
	w := registrypub.NewPollWaiter(url, "v1.4.0")
	w.Attempts = 3
	w.Interval = time.Millisecond
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestPollWaiter_ReturnsOnceIndexed(t *testing.T) {
	t.Parallel()

	// The index answers 404 twice, then the write becomes visible.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lib/1.4.0", r.URL.Path, "tag must be normalized in the lookup")
		if hits.Add(1) < 3 {
			rw.WriteHeader(http.StatusNotFound)
			return
		}
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newPollWaiter(t, srv.URL)
	err := w.Wait(context.Background(), []release.Package{{Name: "lib"}})

	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestPollWaiter_ExhaustedAttemptsIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	w := newPollWaiter(t, srv.URL)
	err := w.Wait(context.Background(), []release.Package{{Name: "lib"}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lib@1.4.0 not visible")
}

func TestPollWaiter_ChecksEveryPriorPackage(t *testing.T) {
	t.Parallel()

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newPollWaiter(t, srv.URL)
	err := w.Wait(context.Background(), []release.Package{{Name: "lib"}, {Name: "core"}})

	require.NoError(t, err)
	assert.Equal(t, []string{"/lib/1.4.0", "/core/1.4.0"}, paths)
}

func TestPollWaiter_Close(t *testing.T) {
	t.Parallel()

	w := registrypub.NewPollWaiter("http://localhost:0", "1.0.0")
	assert.NoError(t, w.Close())
}
