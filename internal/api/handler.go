package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/open-hospitality/kestrel/internal/alerts"
	"github.com/open-hospitality/kestrel/internal/domain"
	"github.com/open-hospitality/kestrel/internal/engine"
	"github.com/open-hospitality/kestrel/internal/monitor"
	"github.com/open-hospitality/kestrel/internal/reporting"
	"github.com/open-hospitality/kestrel/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *engine.Engine
	monitor   *monitor.Monitor
	generator *alerts.Generator
	reporter  *reporting.Reporter
	rules     *rules.Engine
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, mon *monitor.Monitor, generator *alerts.Generator, reporter *reporting.Reporter, ruleEngine *rules.Engine, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    eng,
		monitor:   mon,
		generator: generator,
		reporter:  reporter,
		rules:     ruleEngine,
		version:   version,
	}
}

// EvaluateRequest is the request body for POST /evaluate.
type EvaluateRequest struct {
	EmployeeID string `json:"employeeId"`
	PeriodDays int    `json:"periodDays,omitempty"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.EmployeeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "employeeId is required",
		})
		return
	}

	result, err := h.engine.Evaluate(ctx, venueID, req.EmployeeID, req.PeriodDays)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "employee not found",
			})
			return
		}
		slog.Error("evaluation failed",
			"venue_id", venueID,
			"employee_id", req.EmployeeID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateEmployeeRequest is the request body for POST /employees.
type CreateEmployeeRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Active bool   `json:"active"`
}

// CreateEmployee handles POST /employees requests, registering or
// updating a roster entry.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	emp := &domain.Employee{
		ID:      req.ID,
		VenueID: venueID,
		Name:    req.Name,
		Role:    req.Role,
		Active:  req.Active,
	}
	if err := h.repo.SaveEmployee(ctx, venueID, emp); err != nil {
		slog.Error("employee save failed",
			"venue_id", venueID,
			"employee_id", emp.ID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save employee",
		})
		return
	}

	writeJSON(w, http.StatusCreated, emp)
}

// ListEmployees handles GET /employees requests.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	employees, err := h.repo.ListEmployees(ctx, venueID)
	if err != nil {
		slog.Error("employee list failed", "venue_id", venueID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list employees",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"employees": employees,
		"count":     len(employees),
	})
}

// GetEmployee handles GET /employees/{employeeID} requests.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)
	employeeID := chi.URLParam(r, "employeeID")

	emp, err := h.repo.GetEmployee(ctx, venueID, employeeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "employee not found",
			})
			return
		}
		slog.Error("employee lookup failed",
			"venue_id", venueID,
			"employee_id", employeeID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load employee",
		})
		return
	}

	writeJSON(w, http.StatusOK, emp)
}

// Snapshots handles GET /snapshots/{employeeID} requests.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)
	employeeID := chi.URLParam(r, "employeeID")

	if employeeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "employee id is required",
		})
		return
	}

	days := queryInt(r, "days", 0)
	snapshots, err := h.engine.History(ctx, venueID, employeeID, days)
	if err != nil {
		slog.Error("snapshot history failed",
			"venue_id", venueID,
			"employee_id", employeeID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load snapshot history",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// MonitorTransaction handles POST /monitor/transaction requests.
func (h *Handler) MonitorTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	var event domain.RealTimeEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	event.VenueID = venueID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	assessment, err := h.monitor.AssessTransaction(ctx, &event)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Alert raising is best-effort; the assessment is the contract.
	if h.generator != nil {
		if _, err := h.generator.FromAssessment(ctx, assessment); err != nil {
			slog.Warn("alert from assessment failed",
				"venue_id", venueID,
				"employee_id", assessment.EmployeeID,
				"error", err,
			)
		}
	}

	writeJSON(w, http.StatusOK, assessment)
}

// MonitorShiftRequest is the request body for POST /monitor/shift.
type MonitorShiftRequest struct {
	EmployeeID string `json:"employeeId"`
	ShiftID    string `json:"shiftId"`
}

// MonitorShift handles POST /monitor/shift requests.
func (h *Handler) MonitorShift(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	var req MonitorShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.EmployeeID == "" || req.ShiftID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "employeeId and shiftId are required",
		})
		return
	}

	assessment, err := h.monitor.AssessShift(ctx, venueID, req.EmployeeID, req.ShiftID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "shift not found",
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

// ListAlerts handles GET /alerts requests.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	filter := domain.AlertFilter{
		EmployeeID:         r.URL.Query().Get("employeeId"),
		Severity:           domain.Severity(r.URL.Query().Get("severity")),
		Category:           domain.Category(r.URL.Query().Get("category")),
		UnacknowledgedOnly: r.URL.Query().Get("unacknowledged") == "true",
		Limit:              queryInt(r, "limit", 0),
	}

	list, err := h.generator.List(ctx, venueID, filter)
	if err != nil {
		slog.Error("alert listing failed", "venue_id", venueID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": list,
		"count":  len(list),
	})
}

// AcknowledgeRequest is the request body for POST /alerts/{id}/ack.
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
	ActionTaken    string `json:"actionTaken,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// AcknowledgeAlert handles POST /alerts/{id}/ack requests.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)
	alertID := chi.URLParam(r, "id")

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.AcknowledgedBy == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "acknowledgedBy is required",
		})
		return
	}

	result, err := h.generator.Acknowledge(ctx, venueID, alertID, req.AcknowledgedBy, req.ActionTaken, req.Notes)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Dashboard handles GET /dashboard requests.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	days := queryInt(r, "days", 0)
	dash, err := h.reporter.Dashboard(ctx, venueID, days)
	if err != nil {
		slog.Error("dashboard failed", "venue_id", venueID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build dashboard",
		})
		return
	}

	writeJSON(w, http.StatusOK, dash)
}

// Report handles GET /report requests.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	// employeeId is optional: without it the report covers the venue.
	employeeID := r.URL.Query().Get("employeeId")

	start := queryTime(r, "start")
	end := queryTime(r, "end")

	report, err := h.reporter.Report(ctx, venueID, employeeID, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "employee not found",
			})
			return
		}
		slog.Error("report failed",
			"venue_id", venueID,
			"employee_id", employeeID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to build report",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// IngestSignal handles POST /signals/{kind} requests. It persists the
// canonical record and publishes it to the signal topic for the async
// monitor path.
func (h *Handler) IngestSignal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)
	kind := domain.SignalKind(chi.URLParam(r, "kind"))

	event, err := h.saveSignal(r, venueID, kind)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.bus != nil && event != nil {
		payload, err := json.Marshal(event)
		if err == nil {
			if err := h.bus.Publish(ctx, venueID, domain.TopicSignalRecorded, payload); err != nil {
				slog.Warn("signal publish failed",
					"venue_id", venueID,
					"kind", string(kind),
					"error", err,
				)
			}
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "recorded",
		"kind":   string(kind),
	})
}

// saveSignal decodes and persists one signal record by kind. It returns
// the real-time event to publish, nil for kinds the monitor does not
// consume live.
func (h *Handler) saveSignal(r *http.Request, venueID string, kind domain.SignalKind) (*domain.RealTimeEvent, error) {
	ctx := r.Context()
	dec := json.NewDecoder(r.Body)

	switch kind {
	case domain.KindTransaction:
		var tx domain.Transaction
		if err := dec.Decode(&tx); err != nil {
			return nil, errors.New("invalid transaction payload")
		}
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		tx.VenueID = venueID
		if err := h.repo.SaveTransaction(ctx, venueID, &tx); err != nil {
			return nil, err
		}
		return &domain.RealTimeEvent{
			VenueID:     venueID,
			EmployeeID:  tx.EmployeeID,
			Transaction: &tx,
			Timestamp:   tx.Timestamp,
		}, nil

	case domain.KindVoid:
		var v domain.Void
		if err := dec.Decode(&v); err != nil {
			return nil, errors.New("invalid void payload")
		}
		if v.ID == "" {
			v.ID = uuid.New().String()
		}
		v.VenueID = venueID
		if err := h.repo.SaveVoid(ctx, venueID, &v); err != nil {
			return nil, err
		}
		return &domain.RealTimeEvent{
			VenueID:    venueID,
			EmployeeID: v.EmployeeID,
			Void:       &v,
			Timestamp:  v.Timestamp,
		}, nil

	case domain.KindDiscount:
		var d domain.Discount
		if err := dec.Decode(&d); err != nil {
			return nil, errors.New("invalid discount payload")
		}
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.VenueID = venueID
		if err := h.repo.SaveDiscount(ctx, venueID, &d); err != nil {
			return nil, err
		}
		return &domain.RealTimeEvent{
			VenueID:    venueID,
			EmployeeID: d.EmployeeID,
			Discount:   &d,
			Timestamp:  d.Timestamp,
		}, nil

	case domain.KindRefund:
		var ref domain.Refund
		if err := dec.Decode(&ref); err != nil {
			return nil, errors.New("invalid refund payload")
		}
		if ref.ID == "" {
			ref.ID = uuid.New().String()
		}
		ref.VenueID = venueID
		return nil, h.repo.SaveRefund(ctx, venueID, &ref)

	case domain.KindCashReport:
		var cr domain.CashReport
		if err := dec.Decode(&cr); err != nil {
			return nil, errors.New("invalid cash report payload")
		}
		if cr.ID == "" {
			cr.ID = uuid.New().String()
		}
		cr.VenueID = venueID
		return nil, h.repo.SaveCashReport(ctx, venueID, &cr)

	case domain.KindTimeEntry:
		var te domain.TimeEntry
		if err := dec.Decode(&te); err != nil {
			return nil, errors.New("invalid time entry payload")
		}
		if te.ID == "" {
			te.ID = uuid.New().String()
		}
		te.VenueID = venueID
		return nil, h.repo.SaveTimeEntry(ctx, venueID, &te)

	case domain.KindOverride:
		var ov domain.ManagerOverride
		if err := dec.Decode(&ov); err != nil {
			return nil, errors.New("invalid override payload")
		}
		if ov.ID == "" {
			ov.ID = uuid.New().String()
		}
		ov.VenueID = venueID
		return nil, h.repo.SaveOverride(ctx, venueID, &ov)

	default:
		return nil, errors.New("unknown signal kind: " + string(kind))
	}
}

// ListRules returns the venue's loaded rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	venueID := GetVenueID(r.Context())

	loaded := h.rules.GetLoadedRules(venueID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a rule by ID from the venue's loaded rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	venueID := GetVenueID(r.Context())
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.rules.GetLoadedRules(venueID) {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Flag        string `json:"flag,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// CreateRule validates, loads, and persists a venue rule. The rule is
// live immediately for this instance; other instances pick it up via
// POST /rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		VenueID:     venueID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Flag:        req.Flag,
		Enabled:     req.Enabled,
	}

	if err := h.rules.LoadRule(venueID, ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveRuleConfig(ctx, venueID, ruleConfig); err != nil {
		slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "venue_id", venueID, "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule": ruleConfig,
	})
}

// ReloadRules reloads the venue's rules from the repository into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	venueID := GetVenueID(ctx)

	dbRules, err := h.repo.ListRuleConfigs(ctx, venueID)
	if err != nil {
		slog.Error("failed to list rules from repository", "venue_id", venueID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules",
		})
		return
	}

	if err := h.rules.ReloadRules(venueID, dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "venue_id", venueID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded", "venue_id", venueID, "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryTime(r *http.Request, key string) time.Time {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
