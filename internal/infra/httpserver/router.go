package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appinsight "github.com/bryanwahyu/automaton-insight/internal/application/insight"
	"github.com/bryanwahyu/automaton-insight/internal/domain/events"
	domain "github.com/bryanwahyu/automaton-insight/internal/domain/insight"
	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
	"github.com/bryanwahyu/automaton-insight/internal/domain/severity"
	"github.com/bryanwahyu/automaton-insight/internal/infra/eventbus"
	"github.com/bryanwahyu/automaton-insight/internal/infra/simulator"
	"github.com/bryanwahyu/automaton-insight/internal/middleware"
)

const (
	maxBodyBytes = 1 << 20
	// StatusClientClosedRequest is the nginx convention for a cancelled request.
	StatusClientClosedRequest = 499
)

var (
	errBadRequest   = errors.New("bad request")
	errSlotNotFound = errors.New("slot not found")
)

// Deps wires the router. Limiter and Telemetry are optional.
type Deps struct {
	Insights    *appinsight.Service
	Slots       *appinsight.Registry
	Bus         *eventbus.Bus
	Telemetry   *simulator.Feed
	Limiter     *middleware.RateLimiter
	Checkers    map[string]middleware.HealthChecker
	CORSOrigins []string
	Logger      *zap.Logger
}

type Router struct {
	insights  *appinsight.Service
	slots     *appinsight.Registry
	bus       *eventbus.Bus
	telemetry *simulator.Feed
	logger    *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := &Router{
		insights:  d.Insights,
		slots:     d.Slots,
		bus:       d.Bus,
		telemetry: d.Telemetry,
		logger:    d.Logger,
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Metrics)
	mux.Use(middleware.Logging(d.Logger))
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(d.Checkers))
	mux.Handle("/metrics", middleware.MetricsHandler())

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.TenantParam)
		if d.Limiter != nil {
			rt.Use(middleware.RateLimit(d.Limiter, time.Minute))
		}

		rt.Post("/insights", r.wrap(r.handleInvoke))
		rt.Get("/insights", r.wrap(r.handleListRuns))
		rt.Get("/insights/{id}", r.wrap(r.handleGetRun))

		rt.Post("/slots/{slot}", r.wrap(r.handleStartSlot))
		rt.Get("/slots/{slot}", r.wrap(r.handleGetSlot))

		rt.Post("/events", r.wrap(r.handlePublishEvent))
		rt.Get("/events", r.wrap(r.handleListEvents))
		rt.Get("/events/counts", r.wrap(r.handleEventCounts))
		rt.Get("/events/stream", r.handleEventStream)

		rt.Get("/telemetry", r.wrap(r.handleTelemetryMetrics))
		rt.Get("/telemetry/{metric}", r.wrap(r.handleTelemetry))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Error      string             `json:"error"`
	Kind       domain.Kind        `json:"kind,omitempty"`
	Violations []schema.Violation `json:"violations,omitempty"`
	PayloadURL string             `json:"payload_url,omitempty"`
	// Payload is the raw model output, sent only when it was not archived.
	Payload string `json:"payload,omitempty"`
}

// maxPayloadEcho bounds the raw payload echoed back in an error body.
const maxPayloadEcho = 4 << 10

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := statusFor(err)
		body := errorBody{Error: err.Error()}
		var rf *domain.RequestFailed
		if errors.As(err, &rf) {
			body.Kind = rf.Kind
			body.Violations = rf.Violations
			body.PayloadURL = rf.PayloadURL
			if rf.PayloadURL == "" && len(rf.Payload) > 0 {
				body.Payload = truncatePayload(rf.Payload)
			}
		}
		if status >= http.StatusInternalServerError {
			r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		}
		writeJSON(w, status, body)
	}
}

func truncatePayload(b []byte) string {
	if len(b) <= maxPayloadEcho {
		return string(b)
	}
	cut := maxPayloadEcho
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "...(truncated)"
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunNotFound), errors.Is(err, errSlotNotFound),
		errors.Is(err, simulator.ErrUnknownMetric):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInvalidResponse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCancelled):
		return StatusClientClosedRequest
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// decodeInsightRequest reads {prompt, response_json_schema, slot?}.
func decodeInsightRequest(w http.ResponseWriter, req *http.Request) (domain.Request, error) {
	var body domain.Request
	if err := decodeBody(w, req, &body); err != nil {
		return body, err
	}
	body.TenantID = chi.URLParam(req, "tenant")
	body.Prompt = middleware.SanitizeString(body.Prompt)
	if err := middleware.ValidatePrompt(body.Prompt); err != nil {
		return body, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return body, body.Validate()
}

// POST /v1/{tenant}/insights
// Body: {"prompt": "...", "response_json_schema": {...}, "slot": "optional"}
// With a slot the call goes through the slot, so a newer call for the same
// slot cancels this one.
func (r *Router) handleInvoke(w http.ResponseWriter, req *http.Request) error {
	in, err := decodeInsightRequest(w, req)
	if err != nil {
		return err
	}

	var res domain.Result
	if in.Slot != "" {
		if err := middleware.ValidateSlotName(in.Slot); err != nil {
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
		res, err = r.slots.Slot(in.TenantID, in.Slot).Trigger(req.Context(), in)
	} else {
		res, err = r.insights.Invoke(req.Context(), in)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/{tenant}/insights?page=&page_size=
func (r *Router) handleListRuns(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.insights.ListRuns(req.Context(), tenant, page, middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/{tenant}/insights/{id}
func (r *Router) handleGetRun(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRunID(id); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	run, err := r.insights.Get(req.Context(), tenant, domain.RunID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, run)
}

// POST /v1/{tenant}/slots/{slot}
// Starts the call in the background and answers 202 with the generation.
func (r *Router) handleStartSlot(w http.ResponseWriter, req *http.Request) error {
	name := chi.URLParam(req, "slot")
	if err := middleware.ValidateSlotName(name); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	in, err := decodeInsightRequest(w, req)
	if err != nil {
		return err
	}
	in.Slot = name

	slot := r.slots.Slot(in.TenantID, name)
	gen := slot.Start(in)
	snap := slot.Snapshot()
	return writeJSON(w, http.StatusAccepted, map[string]any{
		"slot":       name,
		"generation": gen,
		"status":     snap.Status,
	})
}

// GET /v1/{tenant}/slots/{slot}
func (r *Router) handleGetSlot(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	name := chi.URLParam(req, "slot")

	slot, ok := r.slots.Lookup(tenant, name)
	if !ok {
		return fmt.Errorf("%w: %s", errSlotNotFound, name)
	}
	return writeJSON(w, http.StatusOK, slot.Snapshot())
}

// POST /v1/{tenant}/events
// Body: {"kind": "threat_detected|deployment_recorded", "source": "...", "severity": "...", "attrs": {}}
func (r *Router) handlePublishEvent(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Kind     events.Kind       `json:"kind"`
		Source   string            `json:"source"`
		Severity string            `json:"severity"`
		Attrs    map[string]string `json:"attrs"`
	}
	if err := decodeBody(w, req, &body); err != nil {
		return err
	}
	// insight_* events are only emitted by the service
	if body.Kind != events.ThreatDetected && body.Kind != events.DeploymentRecorded {
		return fmt.Errorf("%w: kind must be %s or %s", errBadRequest, events.ThreatDetected, events.DeploymentRecorded)
	}

	e := events.Event{
		Kind:     body.Kind,
		TenantID: chi.URLParam(req, "tenant"),
		Source:   middleware.SanitizeString(body.Source),
		Attrs:    body.Attrs,
	}
	if strings.TrimSpace(body.Severity) != "" {
		lvl, ok := severity.Parse(body.Severity)
		if !ok {
			return fmt.Errorf("%w: unknown severity %q", errBadRequest, body.Severity)
		}
		e.Severity = lvl
	}
	return writeJSON(w, http.StatusCreated, r.bus.Publish(req.Context(), e))
}

// GET /v1/{tenant}/events?since=
func (r *Router) handleListEvents(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	var since uint64
	if v := req.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: since must be a sequence number", errBadRequest)
		}
		since = n
	}

	list := r.bus.Since(tenant, since)
	next := since
	if len(list) > 0 {
		next = list[len(list)-1].Seq
	}
	return writeJSON(w, http.StatusOK, map[string]any{"events": list, "next": next})
}

// GET /v1/{tenant}/events/counts
func (r *Router) handleEventCounts(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.bus.Counts(chi.URLParam(req, "tenant")))
}

// GET /v1/{tenant}/telemetry
func (r *Router) handleTelemetryMetrics(w http.ResponseWriter, req *http.Request) error {
	if r.telemetry == nil {
		return writeJSON(w, http.StatusOK, map[string]any{"metrics": []string{}})
	}
	return writeJSON(w, http.StatusOK, map[string]any{"metrics": r.telemetry.Metrics()})
}

// GET /v1/{tenant}/telemetry/{metric}
// Placeholder series from the simulator, not real telemetry.
func (r *Router) handleTelemetry(w http.ResponseWriter, req *http.Request) error {
	metric := chi.URLParam(req, "metric")
	if r.telemetry == nil {
		return fmt.Errorf("%w: %s", simulator.ErrUnknownMetric, metric)
	}
	points, err := r.telemetry.Window(chi.URLParam(req, "tenant"), metric)
	if err != nil {
		return fmt.Errorf("%w: %s", err, metric)
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"metric":      metric,
		"points":      points,
		"placeholder": true,
	})
}
