package oauth

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/existflow/learnportal/internal/logger"
)

// ErrTimeout is returned by Wait when no redirect arrived in time
var ErrTimeout = errors.New("timed out waiting for the OAuth redirect")

var page = template.Must(template.New("callback").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Learning Portal</title></head>
<body>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<p>You can close this tab and return to the terminal.</p>
<script>history.replaceState(null, "", {{.Location}});</script>
</body>
</html>
`))

type pageData struct {
	Title    string
	Message  string
	Location string
}

// maxHandshakes bounds the redirects remembered by a CallbackServer
const maxHandshakes = 32

// CallbackServer hosts handshakes on the portal origin. Requests that carry
// the same redirect share one Handshake, so a reloaded or duplicated redirect
// never exchanges its code twice. Handshakes run on the server's lifetime,
// not the browser request's, so closing the tab cannot lose an outcome.
type CallbackServer struct {
	exchanger Exchanger
	sessions  Sessions
	opts      []HandshakeOption
	addr      string

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	handshakes map[string]*Handshake
	listener   net.Listener
	server     *http.Server
	outcomes   chan Outcome
}

// NewCallbackServer prepares a listener for origin (scheme://host:port)
func NewCallbackServer(origin string, exchanger Exchanger, sessions Sessions, opts ...HandshakeOption) (*CallbackServer, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q: missing host", origin)
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &CallbackServer{
		ctx:        ctx,
		cancel:     cancel,
		exchanger:  exchanger,
		sessions:   sessions,
		opts:       opts,
		addr:       addr,
		handshakes: make(map[string]*Handshake),
		outcomes:   make(chan Outcome, 1),
	}, nil
}

// Start begins listening. The server runs until Close.
func (s *CallbackServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handle)

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	logger.Info("Starting OAuth callback server", logger.F("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("OAuth callback server stopped", logger.Err(err))
		}
	}()
	return nil
}

// URL returns the base URL the server is reachable at
func (s *CallbackServer) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return "http://" + s.addr + "/"
	}
	return "http://" + s.listener.Addr().String() + "/"
}

// Wait returns the first terminal outcome, or ErrTimeout / ctx.Err()
func (s *CallbackServer) Wait(ctx context.Context) (Outcome, error) {
	select {
	case out := <-s.outcomes:
		return out, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Outcome{}, ErrTimeout
		}
		return Outcome{}, ctx.Err()
	}
}

// Close stops the listener and cancels running handshakes
func (s *CallbackServer) Close() error {
	s.cancel()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

// handshakeFor returns the handshake shared by every request carrying the
// same redirect query. When the table is full, finished handshakes are
// evicted; nil means every slot is still in flight.
func (s *CallbackServer) handshakeFor(key string) *Handshake {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handshakes[key]; ok {
		return h
	}
	if len(s.handshakes) >= maxHandshakes {
		for k, h := range s.handshakes {
			if h.State().Terminal() {
				delete(s.handshakes, k)
			}
		}
		if len(s.handshakes) >= maxHandshakes {
			return nil
		}
	}

	h := NewHandshake(s.exchanger, s.sessions, s.opts...)
	s.handshakes[key] = h
	return h
}

// forget drops h if it is still registered under key
func (s *CallbackServer) forget(key string, h *Handshake) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handshakes[key] == h {
		delete(s.handshakes, key)
	}
}

// run drives h on the server context and publishes its outcome. The
// returned channel receives the outcome for rendering.
func (s *CallbackServer) run(h *Handshake) <-chan Outcome {
	done := make(chan Outcome, 1)
	go func() {
		out := h.Run(s.ctx)
		if !out.Skipped && out.State.Terminal() {
			s.publish(out)
		}
		done <- out
	}()
	return done
}

func (s *CallbackServer) handle(w http.ResponseWriter, r *http.Request) {
	location := ScrubURL(r.URL).RequestURI()

	q := r.URL.Query()
	if q.Get("code") == "" && q.Get("error") == "" {
		render(w, http.StatusOK, pageData{
			Title:    "Learning Portal",
			Message:  "No sign-in in progress.",
			Location: location,
		})
		return
	}

	key := q.Encode()
	h := s.handshakeFor(key)
	if h == nil {
		render(w, http.StatusServiceUnavailable, pageData{
			Title:    "Sign-in busy",
			Message:  "Too many sign-in attempts are in progress.",
			Location: location,
		})
		return
	}

	if !h.Detect(r.URL) && h.State() == Idle {
		s.forget(key, h)
		data := pageData{
			Title:    "Learning Portal",
			Message:  "No sign-in in progress.",
			Location: location,
		}
		if s.sessions.HasSession() {
			data.Title = "Already signed in"
			data.Message = "A session was already active."
		}
		render(w, http.StatusOK, data)
		return
	}

	var out Outcome
	select {
	case out = <-s.run(h):
	case <-r.Context().Done():
		return
	}
	if out.Canceled {
		return
	}

	data := pageData{Location: location}
	switch out.State {
	case Succeeded:
		data.Title = "Signed in"
		data.Message = "Google sign-in completed."
	case Failed:
		data.Title = "Sign-in failed"
		data.Message = out.Err.Error()
	case Dismissed:
		data.Title = "Already signed in"
		data.Message = "A session was already active."
	default:
		data.Title = "Sign-in in progress"
		data.Message = "This sign-in is already being handled."
	}
	render(w, http.StatusOK, data)
}

func (s *CallbackServer) publish(out Outcome) {
	select {
	case s.outcomes <- out:
	default:
		logger.Debug("Dropping OAuth outcome, one is already pending", logger.F("state", out.State.String()))
	}
}

func render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := page.Execute(w, data); err != nil {
		logger.Warn("Failed to render callback page", logger.Err(err))
	}
}
