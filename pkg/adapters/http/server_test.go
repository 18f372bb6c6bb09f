package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
	"github.com/aretw0/lattice/pkg/ports"
)

func testEngine(t *testing.T) *compiler.Compiler {
	t.Helper()
	b := dsl.New("server")
	b.Entry("fetch")
	b.Add("fetch", func(_ context.Context, s domain.State) (domain.State, error) {
		return domain.State{"echo": s["topic"]}, nil
	}).Describe("Fetch posts").Go("send")
	b.Add("send", func(_ context.Context, _ domain.State) (domain.State, error) {
		return nil, errors.New("smtp down")
	}).Terminal()
	g, err := b.Build()
	require.NoError(t, err)

	c, err := compiler.New(g, compiler.WithInternalNodes(map[string]string{"send": "send_email"}))
	require.NoError(t, err)
	return c
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Inspection(t *testing.T) {
	c := testEngine(t)
	h := NewHandler(c, WithVersion("1.2.3"))

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/info", "")
	assert.JSONEq(t, `{"graph":"server","version":"1.2.3","external":["fetch"],"internal":["send"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/program", "")
	assert.Equal(t, c.Program(), rec.Body.String())
	assert.Contains(t, rec.Body.String(), "send_result = send_email(state=state)")

	rec = do(t, h, http.MethodGet, "/v1/tools?dialect=messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tools []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	require.Len(t, tools, 1)
	assert.Equal(t, "fetch", tools[0]["name"])
	assert.Equal(t, "Fetch posts", tools[0]["description"])

	rec = do(t, h, http.MethodGet, "/v1/tools?dialect=grpc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Graph(t *testing.T) {
	h := NewHandler(testEngine(t))

	rec := do(t, h, http.MethodGet, "/v1/graph", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view graphView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "server", view.Name)
	require.Len(t, view.Nodes, 2)
	assert.Equal(t, "send_email", view.Nodes[1].InternalTool)
	assert.Contains(t, view.Edges, edgeView{Source: domain.Start, Target: "fetch"})

	rec = do(t, h, http.MethodGet, "/v1/graph?format=mermaid", "")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "graph TD\n"))
	assert.Contains(t, rec.Body.String(), `send[["send <br/> send_email"]]`)
}

func TestServer_Dispatch(t *testing.T) {
	h := NewHandler(testEngine(t))

	rec := do(t, h, http.MethodPost, "/v1/dispatch", `{"id":"1","name":"fetch","arguments":{"state":{"topic":"go"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"echo":"go"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/dispatch", `{"id":"2","name":"nope"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/dispatch", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Runs(t *testing.T) {
	rec := memory.NewRecorder()
	require.NoError(t, rec.Save(context.Background(), &domain.RunRecord{RunID: "r1", Status: domain.StatusDone, StartedAt: time.Now()}))

	var got ports.RunRequest
	run := func(_ context.Context, req ports.RunRequest) (*ports.RunResponse, error) {
		got = req
		if req.Model == "" {
			return nil, domain.ErrConfiguration
		}
		return &ports.RunResponse{RunID: "r2", State: map[string]any{"done": true}, Steps: 2}, nil
	}
	h := NewHandler(testEngine(t), WithRunFunc(run), WithRunRecorder(rec))

	resp := do(t, h, http.MethodPost, "/v1/runs", `{"model":"m","initial_state":{"a":1},"max_steps":3}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"run_id":"r2","state":{"done":true},"steps":2}`, resp.Body.String())
	assert.Equal(t, 3, got.MaxSteps)
	assert.Equal(t, float64(1), got.InitialState["a"])

	resp = do(t, h, http.MethodPost, "/v1/runs", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, h, http.MethodGet, "/v1/runs", "")
	assert.JSONEq(t, `{"runs":["r1"]}`, resp.Body.String())

	resp = do(t, h, http.MethodGet, "/v1/runs/r1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"done"`)

	resp = do(t, h, http.MethodDelete, "/v1/runs/r1", "")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = do(t, h, http.MethodGet, "/v1/runs/r1", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestServer_OptionalEndpointsDisabled(t *testing.T) {
	h := NewHandler(testEngine(t))

	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodPost, "/v1/runs", `{}`).Code)
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodGet, "/v1/runs", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/metrics", "").Code)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "lattice_probe_total", Help: "probe"})
	reg.MustRegister(counter)
	counter.Inc()

	h := NewHandler(testEngine(t), WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lattice_probe_total 1")
}

func TestServer_CORSPreflight(t *testing.T) {
	h := NewHandler(testEngine(t))
	rec := do(t, h, http.MethodOptions, "/v1/dispatch", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
