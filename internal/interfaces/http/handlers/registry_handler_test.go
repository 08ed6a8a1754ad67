package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkrx/formident/internal/application/resolution"
	"github.com/linkrx/formident/internal/domain/equivalence"
	"github.com/linkrx/formident/internal/domain/formulation"
	"github.com/linkrx/formident/internal/domain/matching"
	"github.com/linkrx/formident/internal/infrastructure/monitoring/logging"
	metrics "github.com/linkrx/formident/internal/infrastructure/monitoring/prometheus"
	"github.com/linkrx/formident/pkg/types/common"
)

func matchRecord(ingredient, formRoute, strength, unit string) matching.Record {
	return matching.Record{
		Ingredient: ingredient,
		FormRoute:  formRoute,
		Strength:   strength,
		Unit:       unit,
	}
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := equivalence.NewRegistry()
	key, err := formulation.NewKey("MESALAMINE", "CAPSULE, EXTENDED RELEASE;ORAL", "375MG")
	require.NoError(t, err)
	_, err = reg.Ingest(key, formulation.ApplicationKey{ApplNo: "020067", ProductNo: "001"})
	require.NoError(t, err)
	key2, err := formulation.NewKey("ASPIRIN", "TABLET;ORAL", "325MG")
	require.NoError(t, err)
	_, err = reg.Ingest(key2, formulation.ApplicationKey{ApplNo: "004636", ProductNo: "001"})
	require.NoError(t, err)
	reg.Freeze()

	log := logging.NewNopLogger()
	svc := resolution.NewService(reg, nil, nil, nil,
		metrics.NewMetrics(promclient.NewRegistry()), log)

	h := NewRegistryHandler(svc, log)
	r := gin.New()
	r.GET("/api/v1/classes", h.ListClasses)
	r.GET("/api/v1/classes/:id", h.GetClass)
	r.GET("/api/v1/resolve", h.Resolve)
	r.POST("/api/v1/match", h.Match)
	r.GET("/healthz", h.Health)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListClasses(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/api/v1/classes?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp common.APIResponse[[]ClassView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, int64(2), resp.Pagination.Total)
	assert.Equal(t, equivalence.ClassID(0), resp.Data[0].ID)
}

func TestGetClass(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/classes/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp common.APIResponse[ClassView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.FormulationKeys, 1)
	assert.Equal(t, "MESALAMINE", resp.Data.FormulationKeys[0][0])

	w = doRequest(t, r, http.MethodGet, "/api/v1/classes/99", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/classes/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolve(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(t, r, http.MethodGet, "/api/v1/resolve?appl_no=020067&product_no=001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp common.APIResponse[ClassView]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, [][]string{{"020067", "001"}}, resp.Data.ApplicationKeys)

	w = doRequest(t, r, http.MethodGet, "/api/v1/resolve?appl_no=999999&product_no=001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/v1/resolve", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatch_ByClassID(t *testing.T) {
	r := newTestRouter(t)
	id := 0
	w := doRequest(t, r, http.MethodPost, "/api/v1/match", MatchRequest{
		ClassID: &id,
		Record: matchRecord("MESALAMINE", "CAPSULE, EXTENDED RELEASE;ORAL", ".375", "g/1"),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp common.APIResponse[MatchResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Equivalent)
	require.NotNil(t, resp.Data.ClassID)
	assert.Equal(t, equivalence.ClassID(0), *resp.Data.ClassID)
}

func TestMatch_ByFormulationKey(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(t, r, http.MethodPost, "/api/v1/match", MatchRequest{
		Ingredient: "ASPIRIN",
		FormRoute:  "TABLET;ORAL",
		Strength:   "325MG",
		Record:     matchRecord("ASPIRIN", "TABLET;ORAL", "650", "mg/1"),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp common.APIResponse[MatchResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Equivalent, "a doubled strength is not equivalent")
	assert.Nil(t, resp.Data.ClassID)
}

func TestMatch_Invalid(t *testing.T) {
	r := newTestRouter(t)

	// Neither class id nor key.
	w := doRequest(t, r, http.MethodPost, "/api/v1/match", MatchRequest{
		Record: matchRecord("A", "TABLET;ORAL", "1", "mg/1"),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Record missing required fields.
	w = doRequest(t, r, http.MethodPost, "/api/v1/match", MatchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"classes":2`)
}
