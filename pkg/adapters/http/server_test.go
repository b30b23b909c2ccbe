package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/rootcause"
	"github.com/aretw0/rootcause/pkg/adapters/memory"
	"github.com/aretw0/rootcause/pkg/diagnosis"
	"github.com/aretw0/rootcause/pkg/domain"
	"github.com/aretw0/rootcause/pkg/observability"
	"github.com/aretw0/rootcause/pkg/results"
	"github.com/aretw0/rootcause/pkg/rule"
	"github.com/aretw0/rootcause/pkg/trace"
)

func newEngine(t *testing.T, opts ...rootcause.Option) *rootcause.Engine[*trace.Invocation, *diagnosis.Report] {
	t.Helper()
	opts = append([]rootcause.Option{
		rootcause.WithWorkers(2),
		rootcause.WithDefaultVariables(diagnosis.DefaultVariables()),
	}, opts...)
	eng, err := rootcause.New(diagnosis.Rules(), diagnosis.Collector(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close(context.Background()) })
	return eng
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func decodeRecord(t *testing.T, w *httptest.ResponseRecorder) (domain.Record, diagnosis.Report) {
	t.Helper()
	var record domain.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	var report diagnosis.Report
	if len(record.Result) > 0 {
		require.NoError(t, json.Unmarshal(record.Result, &report))
	}
	return record, report
}

func TestDiagnoses_Lifecycle(t *testing.T) {
	handler := NewHandler(newEngine(t), results.NewManager(memory.NewStore()))

	req := httptest.NewRequest("POST", "/diagnoses", strings.NewReader(readFile(t, "../../trace/testdata/checkout.yaml")))
	req.Header.Set("Content-Type", "application/yaml")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	record, report := decodeRecord(t, w)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "checkout", record.Source)
	require.Len(t, report.Occurrences, 1)
	assert.Equal(t, diagnosis.CauseIterative, report.Occurrences[0].CauseStructure.Type)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/diagnoses", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var ids []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
	assert.Equal(t, []string{record.ID}, ids)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/diagnoses/"+record.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	loaded, _ := decodeRecord(t, w)
	assert.Equal(t, record.ID, loaded.ID)
	assert.JSONEq(t, string(record.Result), string(loaded.Result))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("DELETE", "/diagnoses/"+record.ID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/diagnoses/"+record.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateDiagnosis_QueryVariables(t *testing.T) {
	handler := NewHandler(newEngine(t), nil)

	req := httptest.NewRequest("POST", "/diagnoses?baseline=100", strings.NewReader(readFile(t, "../../trace/testdata/small.json")))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	_, report := decodeRecord(t, w)
	assert.Len(t, report.Occurrences, 2)
	assert.Empty(t, report.ConditionFailures)
}

func TestCreateDiagnosis_InvalidTrace(t *testing.T) {
	handler := NewHandler(newEngine(t), nil)

	for _, body := range []string{"{not json", "{}"} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("POST", "/diagnoses", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

type busyEngine struct{}

func (busyEngine) Diagnose(context.Context, *trace.Invocation, domain.SessionVariables) (*diagnosis.Report, error) {
	return nil, domain.ErrPoolExhausted
}
func (busyEngine) Rules() []rule.Rule      { return nil }
func (busyEngine) Stats() rootcause.Stats { return rootcause.Stats{} }

func TestCreateDiagnosis_Busy(t *testing.T) {
	handler := NewHandler(busyEngine{}, nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/diagnoses", strings.NewReader(`{"method":"A.b","duration":10}`)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetRules(t *testing.T) {
	handler := NewHandler(newEngine(t), nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/rules", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var infos []rule.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 5)
	assert.Equal(t, "GlobalContextRule", infos[0].Name)
	assert.Equal(t, []string{domain.RootTagType}, infos[0].Requires)
	assert.Equal(t, diagnosis.TagGlobalContext, infos[0].Produces)
	assert.Equal(t, []string{"exceeds-baseline"}, infos[0].Conditions)
}

func TestHealthAndInfo(t *testing.T) {
	handler := NewHandler(newEngine(t), nil)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/info", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, rootcause.Version, info["version"])
	assert.EqualValues(t, 5, info["rules"])
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	handler := NewHandler(newEngine(t, rootcause.WithLifecycleHooks(metrics.Hooks())), nil, WithMetrics(reg))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/diagnoses", strings.NewReader(readFile(t, "../../trace/testdata/small.json"))))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rootcause_sessions_total")
}

func TestSubscribeEvents(t *testing.T) {
	handler := NewHandler(newEngine(t), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wSub := httptest.NewRecorder()
	reqSub := httptest.NewRequest("GET", "/events?trace_id=checkout", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(wSub, reqSub)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond) // Wait for subscription to register

	req := httptest.NewRequest("POST", "/diagnoses", strings.NewReader(readFile(t, "../../trace/testdata/checkout.yaml")))
	req.Header.Set("Content-Type", "application/yaml")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	record, _ := decodeRecord(t, w)

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SSE handler did not stop")
	}

	output := wSub.Body.String()
	assert.Contains(t, output, "event: ping")
	assert.Contains(t, output, "event: diagnosis")
	assert.Contains(t, output, record.ID)
}

func TestStreamManager_FiltersByTrace(t *testing.T) {
	sm := NewStreamManager()
	all, unsubAll := sm.Subscribe("")
	defer unsubAll()
	one, unsubOne := sm.Subscribe("a")
	defer unsubOne()

	sm.Broadcast("b", "to-b")
	sm.Broadcast("a", "to-a")

	assert.Equal(t, "to-b", <-all)
	assert.Equal(t, "to-a", <-all)
	assert.Equal(t, "to-a", <-one)
	assert.Empty(t, one)
}
