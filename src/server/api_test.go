package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-oracle/src/logger"
	"price-oracle/src/models"
	"price-oracle/src/oracle"
	"price-oracle/src/schedule"
	"price-oracle/src/storage"
	"price-oracle/src/utils"
)

func newTestServer(t *testing.T, api models.MAPIConfig) (*APIServer, *utils.ManualClock) {
	t.Helper()

	cfg := &models.MConfig{
		Name: "oracled",
		Host: "127.0.0.1",
		Port: 8000,
		Oracle: models.MOracleConfig{
			SystemAccount:     "system",
			PricePointsWindow: 5,
			ReadCacheSize:     16,
		},
		API: api,
	}
	sched := schedule.NewProducerSchedule(models.MProducerSchedule{
		Active: []string{"producer1", "producer2", "producer3"},
	})
	clock := utils.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

	svc, err := oracle.NewOracleService(cfg, logger.NewNopLogger(), storage.NewMemoryDB(), sched, clock)
	require.NoError(t, err)

	s := NewAPIServer(cfg, logger.NewNopLogger(), svc)
	svc.SetExchanger(s)
	t.Cleanup(func() { s.Stop() })
	return s, clock
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type jsonBody = map[string]interface{}

func submit(producer string, price float64) jsonBody {
	return jsonBody{"producer": producer, "pairs_data": map[string]float64{"BTCUSD": price}}
}

// -----------------------------------------------------------------------------

func TestRegisterPairEndpoint(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/pairs", jsonBody{"caller": "system", "pair": "BTCUSD"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/pairs", jsonBody{"caller": "system", "pair": "BTCUSD"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "duplicate_pair")

	rec = doJSON(t, h, http.MethodPost, "/api/pairs", jsonBody{"caller": "producer1", "pair": "ETHUSD"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/pairs", jsonBody{"caller": "system"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/pairs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Pairs []string `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"BTCUSD"}, body.Pairs)
}

func TestSubmitAndReadPrice(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{})
	h := s.Handler()
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/pairs", jsonBody{"caller": "system", "pair": "BTCUSD"}).Code)

	rec := doJSON(t, h, http.MethodGet, "/api/prices/BTCUSD", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for producer, price := range map[string]float64{"producer1": 9000, "producer2": 9100} {
		rec = doJSON(t, h, http.MethodPost, "/api/prices", submit(producer, price))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/prices", submit("producer3", 9050))
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.MSubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 9050.0, result.Published["BTCUSD"].Price)

	rec = doJSON(t, h, http.MethodGet, "/api/prices/BTCUSD", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var price models.MPublishedPrice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &price))
	assert.Equal(t, 9050.0, price.Price)

	rec = doJSON(t, h, http.MethodGet, "/api/prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pair":"BTCUSD"`)

	rec = doJSON(t, h, http.MethodGet, "/api/submissions/producer2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"BTCUSD":9100`)

	rec = doJSON(t, h, http.MethodGet, "/api/submissions/nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status models.MOracleStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.PublishedPairs)
	assert.Equal(t, 3, status.QuorumThreshold)
}

func TestSubmitErrorsMapToStatus(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{})
	h := s.Handler()
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/pairs", jsonBody{"caller": "system", "pair": "BTCUSD"}).Code)

	require.Equal(t, http.StatusOK, doJSON(t, h, http.MethodPost, "/api/prices", submit("producer1", 9000)).Code)

	rec := doJSON(t, h, http.MethodPost, "/api/prices", submit("producer1", 9001))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "submission_too_frequent")

	rec = doJSON(t, h, http.MethodPost, "/api/prices", submit("mallory", 1))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/prices", jsonBody{"producer": "producer2", "pairs_data": map[string]float64{"DOGEUSD": 1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown_pair")

	rec = doJSON(t, h, http.MethodPost, "/api/prices", submit("producer2", -1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_price")
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{})
	h := s.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "oracle_http_requests_total")
}

func TestRateLimitMiddleware(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{RateLimitPerSecond: 1, RateLimitBurst: 1})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/api/pairs", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, h, http.MethodGet, "/api/pairs", nil).Code)

	// health stays outside the limited group
	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/api/health", nil).Code)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{AllowedOrigins: []string{"https://dash.example"}})
	h := s.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/pairs", nil)
	req.Header.Set("Origin", "https://dash.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// -----------------------------------------------------------------------------

func readUpdate(t *testing.T, conn *websocket.Conn) models.MPriceUpdate {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg models.MPriceUpdate
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketFeed(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{})
	s.StartHub()
	h := s.Handler()

	for _, pair := range []string{"BTCUSD", "ETHUSD"} {
		require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/pairs", jsonBody{"caller": "system", "pair": pair}).Code)
	}

	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readUpdate(t, conn)
	assert.Equal(t, models.UpdateTypeInitial, initial.Type)
	assert.Empty(t, initial.Prices)

	// Only follow ETHUSD
	require.NoError(t, conn.WriteJSON(models.MSubscribeCommand{Command: "subscribe", Pairs: []string{"ETHUSD"}}))
	assert.Equal(t, models.UpdateTypeInitial, readUpdate(t, conn).Type)

	prices := map[string]float64{"producer1": 9000, "producer2": 9100, "producer3": 9050}
	eth := map[string]float64{"producer1": 300, "producer2": 310, "producer3": 305}
	for _, p := range []string{"producer1", "producer2", "producer3"} {
		rec := doJSON(t, h, http.MethodPost, "/api/prices", jsonBody{
			"producer":   p,
			"pairs_data": map[string]float64{"BTCUSD": prices[p], "ETHUSD": eth[p]},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	update := readUpdate(t, conn)
	assert.Equal(t, models.UpdateTypeUpdate, update.Type)
	assert.Equal(t, "producer3", update.Producer)
	require.Contains(t, update.Prices, "ETHUSD")
	assert.NotContains(t, update.Prices, "BTCUSD")
	assert.Equal(t, 305.0, update.Prices["ETHUSD"].Price)

	// New subscribers get the merged snapshot
	conn2, _, err := websocket.DefaultDialer.DialContext(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn2.Close()

	snapshot := readUpdate(t, conn2)
	assert.Equal(t, models.UpdateTypeInitial, snapshot.Type)
	assert.Equal(t, 9050.0, snapshot.Prices["BTCUSD"].Price)
	assert.Equal(t, 305.0, snapshot.Prices["ETHUSD"].Price)
}

func TestUpdateAllDatasReplacesSnapshot(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{})
	ts := time.Unix(1700000000, 0).UTC()
	s.UpdateAllDatas([]models.MPublishedPrice{{Pair: "BTCUSD", Price: 1, LastUpdate: ts}})

	snap := s.snapshotFor(&Client{})
	assert.Equal(t, 1.0, snap.Prices["BTCUSD"].Price)
	assert.Equal(t, ts.Unix(), snap.Timestamp)
}

func TestBroadcastAfterStopIsDropped(t *testing.T) {
	s, _ := newTestServer(t, models.MAPIConfig{})
	require.NoError(t, s.Stop())
	assert.NotPanics(t, func() {
		s.Broadcast(&models.MPriceUpdate{Prices: map[string]models.MPublishedPrice{"BTCUSD": {Pair: "BTCUSD"}}})
	})
}
