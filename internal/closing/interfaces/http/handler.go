package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/johnkamauwamunga/energy-erp-sub003/internal/audit"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/auth"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/application"
	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/interfaces"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/observability/metrics"
)

// Handler serves shift closing endpoints.
type Handler struct {
	service        *application.Service
	currency       string
	stationChecker auth.StationTenantChecker
	auditLogger    audit.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service *application.Service, currency string, stationChecker auth.StationTenantChecker, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("closing handler: nil service")
	}
	if currency == "" {
		currency = "KES"
	}
	return &Handler{service: service, currency: currency, stationChecker: stationChecker, auditLogger: auditLogger}, nil
}

// ServeHTTP routes closing requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/v1/closings" {
		if r.Method == http.MethodPost {
			h.handleStart(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api/v1/closings/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/closings/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	shiftID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleView(w, r, shiftID)
		case http.MethodDelete:
			h.handleCancel(w, r, shiftID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "advance" && r.Method == http.MethodPost:
		h.handleAdvance(w, r, shiftID)
	case len(parts) == 2 && parts[1] == "retreat" && r.Method == http.MethodPost:
		h.handleRetreat(w, r, shiftID)
	case len(parts) == 3 && parts[1] == "pumps" && r.Method == http.MethodPut:
		h.handlePumpReading(w, r, shiftID, parts[2])
	case len(parts) == 3 && parts[1] == "tanks" && r.Method == http.MethodPut:
		h.handleTankReading(w, r, shiftID, parts[2])
	case len(parts) == 3 && parts[1] == "collections" && r.Method == http.MethodPut:
		h.handleCollection(w, r, shiftID, parts[2])
	case len(parts) == 3 && parts[1] == "variance" && parts[2] == "ack" && r.Method == http.MethodPost:
		h.handleVarianceAck(w, r, shiftID)
	case len(parts) == 2 && parts[1] == "debtors" && r.Method == http.MethodGet:
		h.handleDebtors(w, r)
	case len(parts) == 2 && parts[1] == "allocations" && r.Method == http.MethodPost:
		h.handleAddAllocation(w, r, shiftID)
	case len(parts) == 3 && parts[1] == "allocations" && parts[2] == "submit" && r.Method == http.MethodPost:
		h.handleSubmitAllocations(w, r, shiftID)
	case len(parts) == 3 && parts[1] == "allocations" && r.Method == http.MethodDelete:
		h.handleRemoveAllocation(w, r, shiftID, parts[2])
	case len(parts) == 2 && parts[1] == "submit" && r.Method == http.MethodPost:
		h.handleSubmit(w, r, shiftID)
	case len(parts) == 2 && parts[1] == "export.pdf" && r.Method == http.MethodGet:
		h.handleExport(w, r, shiftID, "pdf")
	case len(parts) == 2 && parts[1] == "export.xlsx" && r.Method == http.MethodGet:
		h.handleExport(w, r, shiftID, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StationID string `json:"stationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.StationID == "" {
		http.Error(w, "stationId is required", http.StatusBadRequest)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" {
		if err := ensureStationTenant(r, h.stationChecker, tenantID, req.StationID); err != nil {
			respondTenantError(w, err)
			return
		}
	}

	recorderID := auth.SubjectFromContext(r.Context())
	if recorderID == "" {
		recorderID = r.Header.Get("X-User-ID")
	}
	session, err := h.service.StartSession(r.Context(), req.StationID, recorderID)
	if err != nil {
		if errors.Is(err, application.ErrNoOpenShift) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.respondView(w, session)
	h.logAudit(r, session.Shift().StationID, session.Shift().ID, "closing.session.start", nil)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	h.respondView(w, session)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	if err := h.service.CancelSession(r.Context(), shiftID); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, session.Shift().StationID, shiftID, "closing.session.cancel", nil)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	step, err := h.service.Advance(r.Context(), shiftID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]any{"currentStep": step, "steps": session.Steps()})
}

func (h *Handler) handleRetreat(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	step, err := h.service.Retreat(r.Context(), shiftID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]any{"currentStep": step, "steps": session.Steps()})
}

func (h *Handler) handlePumpReading(w http.ResponseWriter, r *http.Request, shiftID, pumpID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdatePumpReading(shiftID, pumpID, req.Field, req.Value); err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondView(w, session)
}

func (h *Handler) handleTankReading(w http.ResponseWriter, r *http.Request, shiftID, tankID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdateTankReading(shiftID, tankID, req.Field, req.Value); err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondView(w, session)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request, shiftID, islandID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	var req struct {
		Method string `json:"method"`
		Value  string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdateCollection(shiftID, islandID, closing.PaymentMethod(req.Method), req.Value); err != nil {
		respondServiceError(w, err)
		return
	}
	h.respondView(w, session)
}

func (h *Handler) handleVarianceAck(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	if err := session.AcknowledgeVariance(time.Now().UTC()); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, session.Shift().StationID, shiftID, "closing.variance.ack", nil)
}

func (h *Handler) handleDebtors(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Debtors(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, list)
}

func (h *Handler) handleAddAllocation(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	var req closing.DebtAllocation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	accepted, err := session.AddAllocation(req, time.Now().UTC())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"allocation":    accepted,
		"remainingDebt": session.RemainingDebt(),
	})
}

func (h *Handler) handleRemoveAllocation(w http.ResponseWriter, r *http.Request, shiftID, allocationID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	if err := session.RemoveAllocation(allocationID, time.Now().UTC()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]any{"remainingDebt": session.RemainingDebt()})
}

func (h *Handler) handleSubmitAllocations(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	result, err := h.service.SubmitAllocations(r.Context(), shiftID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]any{
		"outcome":   result.Outcome(),
		"successes": len(result.Successes),
		"failures":  allocationFailures(result),
		"complete":  session.DebtComplete(),
	})
	h.logAudit(r, session.Shift().StationID, shiftID, "closing.allocations.submit", map[string]any{
		"outcome": string(result.Outcome()),
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request, shiftID string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	closed, err := h.service.SubmitClosing(r.Context(), shiftID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, closed)
	h.logAudit(r, closed.StationID, shiftID, "closing.submit", nil)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, shiftID, format string) {
	session, err := h.sessionFor(w, r, shiftID)
	if session == nil || err != nil {
		return
	}
	view := interfaces.BuildSummaryView(session, h.currency, time.Now().UTC())

	started := time.Now()
	var data []byte
	var contentType string
	switch format {
	case "pdf":
		data, err = interfaces.BuildClosingSummaryPDF(view)
		contentType = "application/pdf"
	case "xlsx":
		data, err = interfaces.BuildClosingSummaryXLSX(view)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.ObserveClosingExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveClosingExport(format, metrics.ResultSuccess, time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="closing-`+shiftID+"."+format+`"`)
	_, _ = w.Write(data)
}

// sessionFor resolves the session and runs the tenant check against its
// station. A nil return means the response has been written.
func (h *Handler) sessionFor(w http.ResponseWriter, r *http.Request, shiftID string) (*application.Session, error) {
	session, err := h.service.Session(shiftID)
	if err != nil {
		http.Error(w, "closing session not found", http.StatusNotFound)
		return nil, err
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID != "" {
		if err := ensureStationTenant(r, h.stationChecker, tenantID, session.Shift().StationID); err != nil {
			respondTenantError(w, err)
			return nil, err
		}
	}
	return session, nil
}

func (h *Handler) respondView(w http.ResponseWriter, session *application.Session) {
	respondJSON(w, interfaces.BuildSummaryView(session, h.currency, time.Now().UTC()))
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func allocationFailures(result application.BatchResult) []map[string]string {
	failures := make([]map[string]string, 0, len(result.Failures))
	for _, failure := range result.Failures {
		failures = append(failures, map[string]string{
			"allocationId": failure.Allocation.ID,
			"debtorName":   failure.Allocation.DebtorName,
			"error":        failure.Err.Error(),
		})
	}
	return failures
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, application.ErrCannotClose),
		errors.Is(err, closing.ErrDebtNotFullyAllocated),
		errors.Is(err, application.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *Handler) logAudit(r *http.Request, stationID, shiftID, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		TenantID:     tenantID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "closing",
		ResourceID:   shiftID,
		StationID:    stationID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func ensureStationTenant(r *http.Request, checker auth.StationTenantChecker, tenantID, stationID string) error {
	if checker == nil || tenantID == "" || stationID == "" {
		return nil
	}
	return checker.EnsureStationTenant(r.Context(), tenantID, stationID)
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}
