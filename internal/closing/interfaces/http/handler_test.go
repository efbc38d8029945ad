package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/application"
	closing "github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/domain"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/closing/infrastructure/memory"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/debtors"
	"github.com/johnkamauwamunga/energy-erp-sub003/internal/pricing"
	station "github.com/johnkamauwamunga/energy-erp-sub003/internal/station/domain"
)

type fixedAssets struct {
	assets station.AssetsStructure
}

func (a fixedAssets) GetShiftAssetsStructure(ctx context.Context, shiftID string) (station.AssetsStructure, error) {
	_ = ctx
	_ = shiftID
	return a.assets, nil
}

func (a fixedAssets) GetStationPumpsWithLastEndReadings(ctx context.Context, stationID string) ([]station.Pump, error) {
	_ = ctx
	_ = stationID
	return nil, nil
}

func (a fixedAssets) GetStationTanksWithLastEndReadings(ctx context.Context, stationID string) ([]station.Tank, error) {
	_ = ctx
	_ = stationID
	return a.assets.Tanks, nil
}

func handlerAssets() station.AssetsStructure {
	assets := station.AssetsStructure{
		ShiftID: "shift-1",
		Islands: []station.Island{
			{
				ID: "island-1",
				Pumps: []station.Pump{
					{ID: "pump-1", IslandID: "island-1", ProductID: "diesel", OpeningElectric: 1000, OpeningManual: 990},
				},
			},
		},
		Tanks: []station.Tank{
			{ID: "tank-1", ProductID: "diesel", OpeningDip: 12},
		},
	}
	assets.Summarize()
	return assets
}

func newTestHandler(t *testing.T) (*Handler, *memory.ShiftStore) {
	t.Helper()

	shifts := memory.NewShiftStore(closing.Shift{
		ID:        "shift-1",
		StationID: "station-1",
		Status:    closing.ShiftStatusOpen,
		OpenedAt:  time.Now().Add(-8 * time.Hour).UTC(),
	})
	resolver, err := pricing.NewResolver(pricing.NewFixedSource(
		pricing.Product{ID: "diesel", FuelCode: "AGO", UnitPrice: 150},
	), pricing.Filter{})
	require.NoError(t, err)
	ledger := debtors.NewMemoryLedger(debtors.Debtor{ID: "debtor-1", Name: "Acme Transport"})

	service, err := application.NewService(shifts, shifts, fixedAssets{assets: handlerAssets()}, ledger, ledger, resolver)
	require.NoError(t, err)

	handler, err := NewHandler(service, "KES", nil, nil)
	require.NoError(t, err)
	return handler, shifts
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-User-ID", "user-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func startSession(t *testing.T, handler *Handler) {
	t.Helper()
	resp := doJSON(t, handler, http.MethodPost, "/api/v1/closings", map[string]string{"stationId": "station-1"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func decodeView(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var view map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	return view
}

func TestStartSessionReturnsWizardView(t *testing.T) {
	handler, _ := newTestHandler(t)
	resp := doJSON(t, handler, http.MethodPost, "/api/v1/closings", map[string]string{"stationId": "station-1"})
	require.Equal(t, http.StatusOK, resp.Code)

	view := decodeView(t, resp)
	require.Equal(t, "preClosingValidation", view["currentStep"])
	require.Len(t, view["steps"], 5)
}

func TestStartSessionRequiresStation(t *testing.T) {
	handler, _ := newTestHandler(t)
	resp := doJSON(t, handler, http.MethodPost, "/api/v1/closings", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestViewUnknownSession(t *testing.T) {
	handler, _ := newTestHandler(t)
	resp := doJSON(t, handler, http.MethodGet, "/api/v1/closings/shift-9", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestPumpReadingUpdateFlowsIntoView(t *testing.T) {
	handler, _ := newTestHandler(t)
	startSession(t, handler)

	resp := doJSON(t, handler, http.MethodPut, "/api/v1/closings/shift-1/pumps/pump-1",
		map[string]string{"field": "electricMeter", "value": "1050"})
	require.Equal(t, http.StatusOK, resp.Code)

	view := decodeView(t, resp)
	payload := view["payload"].(map[string]any)
	readings := payload["pumpReadings"].([]any)
	require.Len(t, readings, 1)
	reading := readings[0].(map[string]any)
	require.Equal(t, 50.0, reading["litersDispensed"])
	require.Equal(t, 7500.0, reading["salesValue"])
}

func TestUnknownReadingFieldRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	startSession(t, handler)

	resp := doJSON(t, handler, http.MethodPut, "/api/v1/closings/shift-1/pumps/pump-1",
		map[string]string{"field": "turboMeter", "value": "1"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestDebtCollectionInsertsAllocationStep(t *testing.T) {
	handler, _ := newTestHandler(t)
	startSession(t, handler)

	resp := doJSON(t, handler, http.MethodPut, "/api/v1/closings/shift-1/collections/island-1",
		map[string]string{"method": "debt", "value": "2000"})
	require.Equal(t, http.StatusOK, resp.Code)

	view := decodeView(t, resp)
	require.Len(t, view["steps"], 6)
	require.Equal(t, 2000.0, view["totalCollectedDebt"])
}

func TestAllocationSubmitFlow(t *testing.T) {
	handler, _ := newTestHandler(t)
	startSession(t, handler)

	resp := doJSON(t, handler, http.MethodPut, "/api/v1/closings/shift-1/collections/island-1",
		map[string]string{"method": "debt", "value": "2000"})
	require.Equal(t, http.StatusOK, resp.Code)

	// Incomplete allocation total is rejected at submit.
	resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/allocations",
		closing.DebtAllocation{DebtorName: "Acme", Amount: 1200, VehiclePlate: "KBZ 123A"})
	require.Equal(t, http.StatusOK, resp.Code)
	resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/allocations/submit", nil)
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/allocations",
		closing.DebtAllocation{DebtorName: "Beta", Amount: 800, VehiclePlate: "KCA 77B"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/allocations/submit", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var result map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, "all", result["outcome"])
	require.Equal(t, true, result["complete"])
}

func TestSubmitClosingEndToEnd(t *testing.T) {
	handler, shifts := newTestHandler(t)
	startSession(t, handler)

	resp := doJSON(t, handler, http.MethodPut, "/api/v1/closings/shift-1/pumps/pump-1",
		map[string]string{"field": "electricMeter", "value": "1050"})
	require.Equal(t, http.StatusOK, resp.Code)
	resp = doJSON(t, handler, http.MethodPut, "/api/v1/closings/shift-1/collections/island-1",
		map[string]string{"method": "cash", "value": "7502"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/variance/ack", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	// Premature submit trips the final-step gate.
	resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/submit", nil)
	require.Equal(t, http.StatusConflict, resp.Code)

	for i := 0; i < 4; i++ {
		resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/advance", nil)
		require.Equal(t, http.StatusOK, resp.Code)
	}

	resp = doJSON(t, handler, http.MethodPost, "/api/v1/closings/shift-1/submit", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	payloads := shifts.Payloads()
	require.Len(t, payloads, 1)
	require.Len(t, payloads[0].PumpReadings, 1)
	require.Len(t, payloads[0].Collections, 1)

	resp = doJSON(t, handler, http.MethodGet, "/api/v1/closings/shift-1", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCancelSession(t *testing.T) {
	handler, _ := newTestHandler(t)
	startSession(t, handler)

	resp := doJSON(t, handler, http.MethodDelete, "/api/v1/closings/shift-1", nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = doJSON(t, handler, http.MethodGet, "/api/v1/closings/shift-1", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestExportPDF(t *testing.T) {
	handler, _ := newTestHandler(t)
	startSession(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/closings/shift-1/export.pdf", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	require.NotEmpty(t, resp.Body.Bytes())
}

func TestInvalidJSONRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	startSession(t, handler)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/closings/shift-1/pumps/pump-1", bytes.NewReader([]byte("{")))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
