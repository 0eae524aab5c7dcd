package oauth

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCallbackServer(t *testing.T, ex Exchanger, opts ...HandshakeOption) *CallbackServer {
	t.Helper()
	s, err := NewCallbackServer("http://127.0.0.1:0", ex, &fakeSessions{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func serve(s *CallbackServer, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handle(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func handshakeCount(s *CallbackServer) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handshakes)
}

func TestPlainRequestsAreNotRemembered(t *testing.T) {
	s := newTestCallbackServer(t, &countingExchanger{}, fast())

	for i := 0; i < 100; i++ {
		rec := serve(s, fmt.Sprintf("/?page=%d", i))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 0, handshakeCount(s))
}

func TestFinishedHandshakesAreEvicted(t *testing.T) {
	ex := &countingExchanger{}
	s := newTestCallbackServer(t, ex, WithDelays(0, 0))

	for i := 0; i < 3*maxHandshakes; i++ {
		rec := serve(s, fmt.Sprintf("/?code=c%d", i))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.LessOrEqual(t, handshakeCount(s), maxHandshakes)
	}
	assert.Equal(t, int32(3*maxHandshakes), ex.calls.Load())
}

func TestTableFullOfRunningHandshakesRejects(t *testing.T) {
	ex := &countingExchanger{delay: 300 * time.Millisecond}
	s := newTestCallbackServer(t, ex, WithDelays(0, 0))

	var wg sync.WaitGroup
	for i := 0; i < maxHandshakes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			serve(s, fmt.Sprintf("/?code=busy%d", i))
		}(i)
	}
	require.Eventually(t, func() bool { return handshakeCount(s) == maxHandshakes },
		time.Second, 5*time.Millisecond)

	rec := serve(s, "/?code=one-too-many")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many sign-in attempts")

	wg.Wait()
	assert.Equal(t, int32(maxHandshakes), ex.calls.Load())
}
