package healthcheck

import (
	"fmt"
	"net/http"
)

// ReadinessProbe reports nil when the process is ready to serve.
type ReadinessProbe func() error

// HealthCheck is the health check handler.
type HealthCheck struct {
	Probe ReadinessProbe
}

// New returns a HealthCheck backed by probe. A nil probe is always healthy.
func New(probe ReadinessProbe) HealthCheck {
	return HealthCheck{Probe: probe}
}

// Handler is used to control the flow of GET /health endpoint
func (hc HealthCheck) Handler(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if IsHealthCheckRequest(r) {
			hc.ServeHTTP(w, r)

			return
		}

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

// ServeHTTP serve http request for health check
func (hc HealthCheck) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if hc.Probe != nil {
		if err := hc.Probe(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// IsHealthCheckRequest is used to check if the request is a health check request
func IsHealthCheckRequest(r *http.Request) bool {
	return r.Method == http.MethodGet && r.URL.Path == "/health"
}
