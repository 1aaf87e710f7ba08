// Package webhook hosts the HTTP surface the platform calls: the
// verification handshake, event deliveries and attachment fetches.
package webhook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/boomerangbot/boomerang/internal/events"
	"github.com/boomerangbot/boomerang/internal/signature"
)

// Queue receives parsed Updates. *dispatch.Dispatcher implements it.
type Queue interface {
	Enqueue(u events.Update) bool
}

// Config configures a Server.
type Config struct {
	Addr        string
	VerifyToken string
	// Validator enables signature checking when non-nil. Leaving it nil
	// skips validation, for local development only.
	Validator *signature.Validator
	Queue     Queue
	// Attachments serves GET /attachments/<token>; optional.
	Attachments http.Handler
}

// Server is the webhook endpoint.
type Server struct {
	verifyToken string
	validator   *signature.Validator
	queue       Queue
	server      *http.Server
}

// NewServer creates a Server listening on cfg.Addr.
func NewServer(cfg Config) *Server {
	s := &Server{
		verifyToken: cfg.VerifyToken,
		validator:   cfg.Validator,
		queue:       cfg.Queue,
		server:      &http.Server{Addr: cfg.Addr},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	if cfg.Attachments != nil {
		mux.Handle("/attachments/", cfg.Attachments)
	}
	s.server.Handler = mux
	return s
}

// Handler exposes the server's routes, for embedding behind an
// existing listener or mux.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in the background. The server shuts down when
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("webhook: server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Serve blocks serving requests until Stop is called. A clean shutdown
// returns nil.
func (s *Server) Serve() error {
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop() error {
	return s.server.Shutdown(context.Background())
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// GET: the platform proves endpoint ownership via challenge echo.
	if r.Method == http.MethodGet {
		mode := r.URL.Query().Get("hub.mode")
		token := r.URL.Query().Get("hub.verify_token")
		challenge := r.URL.Query().Get("hub.challenge")
		if mode == "subscribe" && token == s.verifyToken {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, challenge)
		} else {
			w.WriteHeader(http.StatusForbidden)
		}
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// POST: event delivery. Signature validation runs over the exact
	// raw bytes, before any parsing.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		sig := r.Header.Get("X-Hub-Signature-256")
		if sig == "" {
			sig = r.Header.Get("X-Hub-Signature")
		}
		if !s.validator.Valid(body, sig) {
			slog.Warn("webhook: rejecting delivery with bad signature", "remote", r.RemoteAddr)
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}

	// Past the signature check, everything answers 200: a non-200 here
	// makes the platform re-deliver the batch, which is worse than a
	// locally logged failure.
	batch, err := events.Parse(body)
	if err != nil {
		slog.Warn("webhook: delivery is not an event batch", "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	handed := 0
	for {
		u, ok := batch.Next()
		if !ok {
			break
		}
		if s.queue.Enqueue(u) {
			handed++
		}
	}
	if skipped := batch.Skipped(); skipped > 0 {
		slog.Warn("webhook: skipped malformed events in delivery", "skipped", skipped, "handled", handed)
	}

	w.WriteHeader(http.StatusOK)
}
