// Package api exposes the Wizard gateway's subsystems over HTTP/JSON:
// dispatch, completion, rate-limit stats, device pairing, and sync.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/ocx/backend/internal/device"
	"github.com/ocx/backend/internal/dispatch"
	"github.com/ocx/backend/internal/events"
	"github.com/ocx/backend/internal/gateway"
	"github.com/ocx/backend/internal/policy"
	"github.com/ocx/backend/internal/ratelimit"
	"github.com/ocx/backend/internal/sync"
	"github.com/ocx/backend/internal/wizerr"
)

// Server wires the Wizard subsystems into HTTP handlers and serves them
// behind CORS and rate-limit middleware.
type Server struct {
	dispatch     *dispatch.Service
	gateway      *gateway.Gateway
	policy       *policy.Enforcer
	limiter      *ratelimit.Limiter
	devices      *device.Store
	pairing      *device.PairingService
	auth         *device.Service
	orchestrator *sync.Orchestrator
	events       events.EventEmitter
	bus          subscribable // non-nil when the emitter also supports SSE subscription
	logger       *log.Logger
}

// subscribable is satisfied by both events.EventBus and events.PubSubEventBus
// (which embeds EventBus), letting the stream handler work with either.
type subscribable interface {
	Subscribe(eventTypes ...string) chan *events.CloudEvent
	Unsubscribe(ch chan *events.CloudEvent)
}

func NewServer(
	dispatchSvc *dispatch.Service,
	gw *gateway.Gateway,
	pol *policy.Enforcer,
	limiter *ratelimit.Limiter,
	devices *device.Store,
	pairing *device.PairingService,
	auth *device.Service,
	orchestrator *sync.Orchestrator,
	emitter events.EventEmitter,
) *Server {
	s := &Server{
		dispatch:     dispatchSvc,
		gateway:      gw,
		policy:       pol,
		limiter:      limiter,
		devices:      devices,
		pairing:      pairing,
		auth:         auth,
		orchestrator: orchestrator,
		events:       emitter,
		logger:       log.New(os.Stdout, "[API] ", log.LstdFlags),
	}
	if bus, ok := emitter.(subscribable); ok {
		s.bus = bus
	}
	return s
}

func (s *Server) emit(eventType, subject, deviceID string, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Emit(eventType, "wizard-gateway", subject, deviceID, data)
}

// Router builds the gorilla/mux router with CORS and rate-limit middleware
// applied, ready to be served.
func (s *Server) Router(corsOrigins []string) *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware(corsOrigins))
	if s.limiter != nil {
		r.Use(s.limiter.Middleware)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/rate-limits", s.handleRateLimits).Methods(http.MethodGet)
	r.HandleFunc("/api/dispatch", s.handleDispatch).Methods(http.MethodPost)
	r.HandleFunc("/api/ai/complete", s.handleComplete).Methods(http.MethodPost)
	r.HandleFunc("/api/devices/pair", s.handleDevicePair).Methods(http.MethodPost)
	sr := r.PathPrefix("/api/sync").Subrouter()
	sr.Use(s.requireTrust(device.TrustStandard, device.TrustAdmin))
	sr.HandleFunc("/{kind}", s.handleSync).Methods(http.MethodPost)
	r.HandleFunc("/api/events/stream", s.handleEventStream).Methods(http.MethodGet)

	return r
}

// requireTrust rejects requests from devices whose trust level isn't in
// allowed. Unpaired callers (no Authorization header, or an unknown device
// id) resolve to TrustPending and are rejected by every non-empty allow
// list.
func (s *Server) requireTrust(allowed ...device.TrustLevel) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.auth == nil {
				next.ServeHTTP(w, r)
				return
			}
			level := s.auth.GetTrustLevel(device.IdentifyRequest(r))
			for _, a := range allowed {
				if level == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, wizerr.AuthRequired("api", "device trust level \""+string(level)+"\" may not call this route"))
		})
	}
}

func (s *Server) corsMiddleware(origins []string) mux.MiddlewareFunc {
	allow := "*"
	if len(origins) > 0 {
		allow = origins[0]
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allow)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// statusForCode maps a wizerr.Code to the HTTP status that best represents
// it, matching spec.md §7's closed code set.
func statusForCode(code wizerr.Code) int {
	switch code {
	case wizerr.CodeNotFound:
		return http.StatusNotFound
	case wizerr.CodeInvalidInput:
		return http.StatusBadRequest
	case wizerr.CodeAuthRequired:
		return http.StatusForbidden
	case wizerr.CodeConflict:
		return http.StatusConflict
	case wizerr.CodeUnsupportedOperation:
		return http.StatusNotImplemented
	case wizerr.CodeTimeout:
		return http.StatusGatewayTimeout
	case wizerr.CodeBackendUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError serializes a typed wizerr.Error as the §7 error envelope,
// deriving the HTTP status from its code.
func writeError(w http.ResponseWriter, werr *wizerr.Error) {
	writeJSON(w, statusForCode(werr.Code), map[string]interface{}{
		"status":  "error",
		"message": werr.Message,
		"error":   werr,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"features": map[string]bool{
			"dispatch": s.dispatch != nil,
			"gateway":  s.gateway != nil,
			"sync":     s.orchestrator != nil,
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := device.IdentifyRequest(r)
	stats := s.limiter.GetDeviceStats(deviceID)
	body := map[string]interface{}{
		"device_id":   deviceID,
		"rate_limits": stats,
		"policy":      s.policy.GetStatus(),
	}
	if s.gateway != nil {
		health, breakers := s.gateway.Health()
		body["gateway_health"] = health
		body["circuit_breakers"] = breakers
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	deviceID := device.IdentifyRequest(r)
	if deviceID == "" {
		writeJSON(w, http.StatusOK, s.limiter.GetGlobalStats())
		return
	}
	writeJSON(w, http.StatusOK, s.limiter.GetDeviceStats(deviceID))
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, wizerr.InvalidInput("api", "request body must be JSON with an \"input\" field"))
		return
	}

	resp := s.dispatch.Dispatch(body.Input)
	status := http.StatusOK
	if resp.Status == "error" {
		status = http.StatusBadRequest
	}
	s.emit("wizard.dispatch."+resp.Status, body.Input, device.IdentifyRequest(r), map[string]interface{}{
		"dispatch_to": resp.DispatchTo,
		"command":     resp.Command,
	})
	writeJSON(w, status, resp)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req gateway.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, wizerr.InvalidInput("api", "malformed completion request"))
		return
	}

	deviceID := device.IdentifyRequest(r)
	resp := s.gateway.Complete(r.Context(), req, deviceID)
	status := http.StatusOK
	if !resp.Success && resp.Error != nil {
		status = statusForCode(resp.Error.Code)
	}
	s.emit("wizard.completion.finished", deviceID, deviceID, map[string]interface{}{
		"success":  resp.Success,
		"backend":  resp.Backend,
		"provider": resp.Provider,
		"cost":     resp.Cost,
	})
	writeJSON(w, status, resp)
}

// handleEventStream serves CloudEvents over Server-Sent Events. It is
// available when the emitter also supports subscription (the in-memory
// EventBus, or PubSubEventBus through its embedded EventBus); any other
// emitter gets an unsupported_operation error.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, wizerr.Unsupported("api", "event streaming is not available with this event backend"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, wizerr.Internal("api", "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			payload, err := event.SSEFormat()
			if err != nil {
				continue
			}
			w.Write(payload)
			flusher.Flush()
		}
	}
}

func (s *Server) handleDevicePair(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code       string `json:"code"`
		DeviceName string `json:"device_name"`
		DeviceType string `json:"device_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, wizerr.InvalidInput("api", "malformed pairing request"))
		return
	}

	if body.Code == "" {
		req, err := s.pairing.CreateRequest(0, body.DeviceName)
		if err != nil {
			writeError(w, wizerr.Normalize(err, "device"))
			return
		}
		writeJSON(w, http.StatusOK, req)
		return
	}

	deviceID := fmt.Sprintf("dev-%d", time.Now().UnixNano())
	d, ok := s.pairing.CompletePairing(body.Code, deviceID, body.DeviceName, body.DeviceType, nil)
	if !ok {
		writeError(w, wizerr.NotFound("device", "pairing code is invalid or expired"))
		return
	}
	s.emit("wizard.device.paired", d.ID, d.ID, map[string]interface{}{
		"device_name": d.Name,
		"device_type": d.Type,
	})
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]

	switch kind {
	case "status":
		writeJSON(w, http.StatusOK, s.orchestrator.Queue().GetQueueStatus())
		return
	case "all":
		for provider := range s.orchestrator.History() {
			s.orchestrator.RequestDrain(string(provider))
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "drain_requested"})
		return
	}

	key := sync.ProviderKey(kind)
	var body struct {
		MissionID string `json:"mission_id"`
		Query     string `json:"query"`
		ChannelID string `json:"channel_id"`
		Limit     int    `json:"limit"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Limit == 0 {
		body.Limit = 50
	}

	var result sync.Result
	switch key {
	case sync.ProviderJira, sync.ProviderLinear:
		result = s.orchestrator.SyncIssues(r.Context(), key, body.MissionID, body.Query, body.Limit)
	case sync.ProviderSlack:
		result = s.orchestrator.SyncChat(r.Context(), key, body.MissionID, body.ChannelID, body.Limit)
	case sync.ProviderGmail, sync.ProviderOutlookEmail:
		result = s.orchestrator.SyncEmail(r.Context(), key, body.MissionID, body.Query, body.Limit)
	case sync.ProviderGoogleCalendar, sync.ProviderOutlookCalendar:
		now := time.Now()
		result = s.orchestrator.SyncCalendar(r.Context(), key, body.MissionID, now.Unix(), now.Add(7*24*time.Hour).Unix())
	default:
		writeError(w, wizerr.InvalidInput("sync", "unknown sync kind: "+kind))
		return
	}

	status := http.StatusOK
	if result.Status == "error" {
		status = http.StatusBadGateway
		if len(result.Errors) > 0 && result.Errors[0] != nil {
			status = statusForCode(result.Errors[0].Code)
		}
	}
	s.emit("wizard.sync."+result.Status, string(key), device.IdentifyRequest(r), map[string]interface{}{
		"mission_id":    result.MissionID,
		"synced_count":  result.SyncedCount,
		"tasks_created": result.TasksCreated,
	})
	writeJSON(w, status, result)
}
