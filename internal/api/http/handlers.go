package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/johnkamauwamunga/energy-erp-sub003/internal/auth"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/debtors"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/pricing"
	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

const timeLayout = time.RFC3339

// ShiftsHandler serves closed shift history queries.
type ShiftsHandler struct {
	db             *sql.DB
	stationChecker auth.StationTenantChecker
}

// NewShiftsHandler constructs a ShiftsHandler.
func NewShiftsHandler(db *sql.DB, stationChecker auth.StationTenantChecker) *ShiftsHandler {
	return &ShiftsHandler{db: db, stationChecker: stationChecker}
}

// ServeHTTP handles GET /api/v1/shifts.
func (h *ShiftsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		http.Error(w, "station_id is required", http.StatusBadRequest)
		return
	}
	if err := ensureStationTenant(r, h.stationChecker, stationID); err != nil {
		respondTenantError(w, err)
		return
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	rows, err := queryShifts(r.Context(), h.db, stationID, from, to)
	if err != nil {
		http.Error(w, "query shifts error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// DebtorsHandler serves the registered debtor directory.
type DebtorsHandler struct {
	directory debtors.Directory
}

// NewDebtorsHandler constructs a DebtorsHandler.
func NewDebtorsHandler(directory debtors.Directory) *DebtorsHandler {
	return &DebtorsHandler{directory: directory}
}

// ServeHTTP handles GET /api/v1/debtors.
func (h *DebtorsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.directory == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	list, err := h.directory.GetDebtors(r.Context())
	if err != nil {
		http.Error(w, "query debtors error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// PricesHandler serves the loaded fuel price table.
type PricesHandler struct {
	resolver *pricing.Resolver
}

// NewPricesHandler constructs a PricesHandler.
func NewPricesHandler(resolver *pricing.Resolver) *PricesHandler {
	return &PricesHandler{resolver: resolver}
}

// ServeHTTP handles GET /api/v1/prices.
func (h *PricesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.resolver == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"loadedAt": h.resolver.LoadedAt(),
		"products": h.resolver.Snapshot(),
	})
}

// StationAssetsHandler serves station pump/tank topology with opening
// baselines.
type StationAssetsHandler struct {
	assets         station.AssetsReader
	stationChecker auth.StationTenantChecker
}

// NewStationAssetsHandler constructs a StationAssetsHandler.
func NewStationAssetsHandler(assets station.AssetsReader, stationChecker auth.StationTenantChecker) *StationAssetsHandler {
	return &StationAssetsHandler{assets: assets, stationChecker: stationChecker}
}

// ServeHTTP handles GET /api/v1/stations/{id}/assets.
func (h *StationAssetsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.assets == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/stations/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "assets" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	stationID := parts[0]
	if err := ensureStationTenant(r, h.stationChecker, stationID); err != nil {
		respondTenantError(w, err)
		return
	}

	pumps, err := h.assets.GetStationPumpsWithLastEndReadings(r.Context(), stationID)
	if err != nil {
		http.Error(w, "query pumps error", http.StatusInternalServerError)
		return
	}
	tanks, err := h.assets.GetStationTanksWithLastEndReadings(r.Context(), stationID)
	if err != nil {
		http.Error(w, "query tanks error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"stationId": stationID,
		"pumps":     pumps,
		"tanks":     tanks,
	})
}

// ExportDebtsCSVHandler serves fuel debt CSV exports.
type ExportDebtsCSVHandler struct {
	db             *sql.DB
	stationChecker auth.StationTenantChecker
}

// NewExportDebtsCSVHandler constructs a ExportDebtsCSVHandler.
func NewExportDebtsCSVHandler(db *sql.DB, stationChecker auth.StationTenantChecker) *ExportDebtsCSVHandler {
	return &ExportDebtsCSVHandler{db: db, stationChecker: stationChecker}
}

// ServeHTTP handles GET /api/v1/exports/debts.csv.
func (h *ExportDebtsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	stationID := r.URL.Query().Get("station_id")
	if stationID == "" {
		http.Error(w, "station_id is required", http.StatusBadRequest)
		return
	}
	if err := ensureStationTenant(r, h.stationChecker, stationID); err != nil {
		respondTenantError(w, err)
		return
	}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	rows, err := queryDebts(r.Context(), h.db, stationID, from, to)
	if err != nil {
		http.Error(w, "query debts error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"id",
		"debtor_id",
		"debtor_name",
		"vehicle_plate",
		"vehicle_model",
		"amount",
		"description",
		"shift_id",
		"station_id",
		"recorded_by_id",
		"created_at",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ID,
			row.DebtorID,
			row.DebtorName,
			row.VehiclePlate,
			row.VehicleModel,
			formatFloat(row.Amount),
			row.Description,
			row.ShiftID,
			row.StationID,
			row.RecordedByID,
			formatTime(row.CreatedAt),
		})
	}
	writer.Flush()
}

type shiftRow struct {
	ID           string    `json:"id"`
	StationID    string    `json:"station_id"`
	SupervisorID string    `json:"supervisor_id"`
	RecordedByID string    `json:"recorded_by_id"`
	OpenedAt     time.Time `json:"opened_at"`
	ClosedAt     time.Time `json:"closed_at"`
	Status       string    `json:"status"`
	Collected    float64   `json:"collected"`
}

func queryShifts(ctx context.Context, db *sql.DB, stationID string, from, to time.Time) ([]shiftRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	s.id,
	s.station_id,
	s.supervisor_id,
	COALESCE(s.recorded_by_id, ''),
	s.opened_at,
	COALESCE(s.closed_at, 'epoch'::timestamptz),
	s.status,
	COALESCE(SUM(c.amount), 0)
FROM shifts s
LEFT JOIN shift_collections c ON c.shift_id = s.id
WHERE s.station_id = $1
	AND s.opened_at >= $2
	AND s.opened_at < $3
GROUP BY s.id
ORDER BY s.opened_at ASC`, stationID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []shiftRow
	for rows.Next() {
		var row shiftRow
		if err := rows.Scan(
			&row.ID,
			&row.StationID,
			&row.SupervisorID,
			&row.RecordedByID,
			&row.OpenedAt,
			&row.ClosedAt,
			&row.Status,
			&row.Collected,
		); err != nil {
			return nil, err
		}
		row.OpenedAt = row.OpenedAt.UTC()
		row.ClosedAt = row.ClosedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func queryDebts(ctx context.Context, db *sql.DB, stationID string, from, to time.Time) ([]debtors.FuelDebtRecord, error) {
	rows, err := db.QueryContext(ctx, `
SELECT
	id,
	COALESCE(debtor_id, ''),
	debtor_name,
	COALESCE(contact, ''),
	COALESCE(vehicle_plate, ''),
	COALESCE(vehicle_model, ''),
	amount,
	COALESCE(description, ''),
	shift_id,
	station_id,
	recorded_by_id,
	created_at
FROM fuel_debts
WHERE station_id = $1
	AND created_at >= $2
	AND created_at < $3
ORDER BY created_at ASC`, stationID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []debtors.FuelDebtRecord
	for rows.Next() {
		var row debtors.FuelDebtRecord
		if err := rows.Scan(
			&row.ID,
			&row.DebtorID,
			&row.DebtorName,
			&row.Contact,
			&row.VehiclePlate,
			&row.VehicleModel,
			&row.Amount,
			&row.Description,
			&row.ShiftID,
			&row.StationID,
			&row.RecordedByID,
			&row.CreatedAt,
		); err != nil {
			return nil, err
		}
		row.CreatedAt = row.CreatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func ensureStationTenant(r *http.Request, checker auth.StationTenantChecker, stationID string) error {
	tenantID := auth.TenantIDFromContext(r.Context())
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

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
