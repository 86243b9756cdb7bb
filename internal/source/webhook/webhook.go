// Package webhook receives updates pushed by Telegram over HTTPS.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lsm/karajan/internal/source"
)

// SecretHeader carries the secret_token given to setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxBodyBytes = 1 << 20

// Config holds webhook source configuration.
type Config struct {
	ListenAddr string
	Path       string
	// Secret, when set, must match SecretHeader on every request.
	Secret string
}

// Source receives updates via HTTP POST and dispatches them to the handler.
type Source struct {
	server     *http.Server
	logger     *slog.Logger
	addr       string
	path       string
	secret     string
	ListenAddr string
	ready      chan struct{}
}

func NewSource(cfg Config, logger *slog.Logger) (*Source, error) {
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("webhook listen address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return &Source{
		addr:   cfg.ListenAddr,
		path:   path,
		secret: cfg.Secret,
		logger: logger,
		ready:  make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound and ListenAddr is set.
func (s *Source) Ready() <-chan struct{} {
	return s.ready
}

// Handler returns the webhook endpoint. Handler errors are logged and still
// answered with 200: Telegram redelivers anything else, and a guest that
// fails on an update will keep failing on it.
func (s *Source) Handler(handler func(context.Context, source.Event) error) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.secret != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(SecretHeader)), []byte(s.secret)) != 1 {
			s.logger.Warn("webhook request with bad secret", "remote", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		headers := map[string]string{"source": "webhook"}
		for k, v := range r.Header {
			if len(v) > 0 && k != SecretHeader {
				headers[strings.ToLower(k)] = v[0]
			}
		}
		evt := source.NewEvent(body, headers)

		if err := handler(r.Context(), evt); err != nil {
			s.logger.Error("handler error", "update_id", evt.UpdateID, "error", err)
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Start begins accepting HTTP requests. Blocks until ctx is cancelled.
func (s *Source) Start(ctx context.Context, handler func(context.Context, source.Event) error) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.ListenAddr = lis.Addr().String()

	s.server = &http.Server{
		Handler:           s.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook source starting", "addr", s.ListenAddr, "path", s.path)
		close(s.ready)
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("webhook server shutdown error", "error", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close stops the HTTP server.
func (s *Source) Close() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
