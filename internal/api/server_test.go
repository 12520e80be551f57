package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradesim/internal/config"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/metrics"
	"github.com/talgya/tradesim/internal/persistence"
	"github.com/talgya/tradesim/internal/scenario"
)

func newTestServer(t *testing.T, withDB bool) *Server {
	t.Helper()
	sc, err := scenario.Build(config.Default())
	require.NoError(t, err)
	srv := &Server{
		Scenario: sc,
		Runner:   engine.NewRunner(sc.Model.Scheduler()),
		Metrics:  metrics.New(),
		AdminKey: "secret",
	}
	sc.Model.Subscribe(srv.Metrics.Observe)
	if withDB {
		db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		run, err := db.StartRun(sc.Config.Start, sc.Config.Seed, "")
		require.NoError(t, err)
		srv.DB = db
		srv.Journal = persistence.NewJournal(db, run)
		sc.Model.Subscribe(srv.Journal.Listen)
	}
	require.NoError(t, sc.Model.Start())
	require.NoError(t, sc.Model.Scheduler().RunUntil(engine.At(5)))
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestStatusAndActors(t *testing.T) {
	h := newTestServer(t, false).Handler()

	var status map[string]any
	decode(t, get(t, h, "/api/v1/status"), &status)
	assert.Equal(t, 5.0, status["day"])
	assert.Equal(t, 5.0, status["actors"])
	assert.Equal(t, false, status["running"])

	var actors []actorSummary
	decode(t, get(t, h, "/api/v1/actors"), &actors)
	require.Len(t, actors, 5)
	assert.Equal(t, "shop", actors[2].ID)
	assert.Equal(t, []string{"accounting", "buying", "consuming", "costs"}, actors[2].Roles)
	require.NotNil(t, actors[2].Balance)
	assert.Nil(t, actors[1].Balance)
}

func TestActorDetailAndContent(t *testing.T) {
	h := newTestServer(t, false).Handler()

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/actor/nobody").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/actor/").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/actor/shop/content?group=x").Code)

	var detail struct {
		ID     string `json:"id"`
		Stock  []struct {
			Product string  `json:"product"`
			Actual  float64 `json:"actual"`
		} `json:"stock"`
		Groups []uint64 `json:"groups"`
	}
	decode(t, get(t, h, "/api/v1/actor/shop"), &detail)
	assert.Equal(t, "shop", detail.ID)
	assert.Len(t, detail.Stock, 2)
	require.NotEmpty(t, detail.Groups)

	var trail []struct {
		Kind      string `json:"kind"`
		Direction string `json:"direction"`
		Content   struct {
			GroupingID uint64 `json:"grouping_id"`
		} `json:"content"`
	}
	g := detail.Groups[0]
	decode(t, get(t, h, "/api/v1/actor/shop/content?group="+jsonNumber(g)), &trail)
	require.NotEmpty(t, trail)
	assert.Equal(t, "Demand", trail[0].Kind)
	assert.Equal(t, "self", trail[0].Direction)
	for _, c := range trail {
		assert.Equal(t, g, c.Content.GroupingID)
	}

	decode(t, get(t, h, "/api/v1/actor/shop/content?kind=Demand"), &trail)
	for _, c := range trail {
		assert.Equal(t, "Demand", c.Kind)
	}
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, false).Handler()
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tradesim_content_sent_total{kind="Demand"}`)
	assert.Contains(t, rec.Body.String(), "tradesim_sim_days")
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t, true)
	h := srv.Handler()

	post := func(path, body, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post("/api/v1/speed", `{"speed": 2}`, "wrong").Code)
	assert.Equal(t, http.StatusBadRequest, post("/api/v1/speed", `{"speed": -1}`, "secret").Code)
	rec := post("/api/v1/speed", `{"speed": 2}`, "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, srv.Runner.Speed)

	assert.Equal(t, http.StatusMethodNotAllowed, get(t, h, "/api/v1/snapshot").Code)
	require.Equal(t, http.StatusOK, post("/api/v1/snapshot", "", "secret").Code)
	rows, err := srv.DB.LoadContents(srv.Journal.RunID(), "shop", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	var notices []persistence.NoticeRow
	decode(t, get(t, h, "/api/v1/notices?limit=5"), &notices)
	assert.Len(t, notices, 5)

	srv.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, post("/api/v1/speed", `{"speed": 1}`, "secret").Code)
}

func TestNoticesWithoutDatabase(t *testing.T) {
	h := newTestServer(t, false).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/api/v1/notices").Code)
}
