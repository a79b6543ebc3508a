package web

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

// NewServer creates and configures the HTTP server for the webhook
// ingress.
func NewServer(h *Handlers, addr string) *http.Server {
	mux := http.NewServeMux()

	// Go 1.22 method+path route patterns
	mux.HandleFunc("POST /webhook", h.HandleWebhook)
	mux.HandleFunc("POST /trigger", h.HandleTrigger)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	mux.HandleFunc("GET /digest/{period}", h.HandleDigestPreview)

	return &http.Server{
		Addr:    addr,
		Handler: securityHeaders(mux),
	}
}

// securityHeaders sets baseline security headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func Run(srv *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	log.Printf("jot webhook ingress listening on %s", srv.Addr)
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Printf("WARNING: binding to all interfaces; the webhook endpoint may be reachable from the network")
	}

	select {
	case err := <-serveErr:
		return err
	case <-stop:
		log.Println("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
