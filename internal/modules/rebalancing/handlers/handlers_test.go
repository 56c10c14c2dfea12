package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/allocator/internal/modules/rebalancing"
)

type stubHoldings struct {
	holdings []rebalancing.Holding
}

func (s *stubHoldings) GetDeploymentHoldings(accountID int64) ([]rebalancing.Holding, error) {
	return s.holdings, nil
}

func newTestRouter(holdings []rebalancing.Holding) http.Handler {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	service := rebalancing.NewService(rebalancing.NewCalculator(log), &stubHoldings{holdings: holdings}, nil, nil, log)
	r := chi.NewRouter()
	NewHandler(service, log).RegisterRoutes(r)
	return r
}

func TestHandleDeploy(t *testing.T) {
	router := newTestRouter([]rebalancing.Holding{
		{ID: "1", Name: "Alpha", Price: decimal.NewNullDecimal(decimal.NewFromInt(10)), CurrentValue: decimal.NewFromInt(100)},
		{ID: "2", Name: "Beta", Price: decimal.NewNullDecimal(decimal.NewFromInt(20)), CurrentValue: decimal.NewFromInt(100)},
	})

	body := `{"amount": 300, "mode": "equal_weight"}`
	req := httptest.NewRequest(http.MethodPost, "/accounts/3/rebalancing/deploy", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result rebalancing.DeployResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.Len(t, result.Recommendations, 2)
	assert.Equal(t, "150", result.Recommendations[0].AmountToBuy.String())
	assert.Equal(t, "15", result.Recommendations[0].SharesToBuy.String())
	assert.Equal(t, "7.5", result.Recommendations[1].SharesToBuy.String())
}

func TestHandleDeploy_BadRequests(t *testing.T) {
	router := newTestRouter(nil)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"invalid account", "/accounts/abc/rebalancing/deploy", `{"amount": 100}`},
		{"zero account", "/accounts/0/rebalancing/deploy", `{"amount": 100}`},
		{"malformed body", "/accounts/1/rebalancing/deploy", `{`},
		{"non-positive amount", "/accounts/1/rebalancing/deploy", `{"amount": 0}`},
		{"unknown mode", "/accounts/1/rebalancing/deploy", `{"amount": 100, "mode": "momentum"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleCalculate_InlineHoldings(t *testing.T) {
	router := newTestRouter(nil)

	body := `{
		"amount": "2000",
		"mode": "target_weights",
		"targets": {"x": 0, "y": 100},
		"holdings": [
			{"id": "x", "name": "X", "price": 100, "current_value": 8000},
			{"id": "y", "name": "Y", "price": 50, "current_value": 0}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/rebalancing/deploy", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result rebalancing.DeployResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.Len(t, result.Recommendations, 1)
	assert.Equal(t, "y", result.Recommendations[0].HoldingID)
	assert.Equal(t, "2000", result.Recommendations[0].AmountToBuy.String())
	assert.Equal(t, "40", result.Recommendations[0].SharesToBuy.String())
}
