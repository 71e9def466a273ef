package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor"
	arborhttp "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"github.com/aretw0/arbor/pkg/machine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	eng    *arbor.Engine
	server *arborhttp.Server
	http   *httptest.Server
	done   *bool
}

func newFixture(t *testing.T, opts ...arborhttp.Option) *fixture {
	t.Helper()
	tr, err := dsl.New().
		State("root").Enter("not(done)").
		State("work").Parent("root").Enter("not(done)").Exit("done").
		Build()
	require.NoError(t, err)

	f := &fixture{done: new(bool)}
	var hooks domain.LifecycleHooks
	f.eng = arbor.New(tr, arbor.WithLifecycleHooks(domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) { hooks.OnTransition(ctx, e) },
		OnTerminate:  func(ctx context.Context, e *domain.TransitionEvent) { hooks.OnTerminate(ctx, e) },
	}))
	require.NoError(t, f.eng.RegisterCondition("done", func(domain.Scope) bool { return *f.done }))

	f.server = arborhttp.NewServer(f.eng, opts...)
	hooks = f.server.Hooks()
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.http.Close)

	require.NoError(t, f.eng.Attach(context.Background(), "e1", "root"))
	return f
}

func (f *fixture) advance(t *testing.T, seq uint64) domain.Outcome {
	t.Helper()
	out, err := f.eng.Advance(context.Background(), "e1", domain.Tick{Seq: seq})
	require.NoError(t, err)
	return out
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServer_Introspection(t *testing.T) {
	f := newFixture(t)
	f.advance(t, 0)

	code, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	code, body = f.do(t, http.MethodGet, "/tree", "")
	assert.Equal(t, http.StatusOK, code)
	var specs []domain.StateSpec
	require.NoError(t, json.Unmarshal([]byte(body), &specs))
	assert.Len(t, specs, 2)

	code, body = f.do(t, http.MethodGet, "/instances", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["e1"]`, body)

	code, body = f.do(t, http.MethodGet, "/instances/e1", "")
	assert.Equal(t, http.StatusOK, code)
	var inst machine.Instance
	require.NoError(t, json.Unmarshal([]byte(body), &inst))
	assert.Equal(t, domain.StateID("work"), inst.Current)

	code, body = f.do(t, http.MethodGet, "/instances/e1/history", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"from":"","to":"work","tick":0}]`, body)

	code, body = f.do(t, http.MethodGet, "/tree/mermaid", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "graph TD")
	assert.NotContains(t, body, "class work current;")

	code, body = f.do(t, http.MethodGet, "/instances/e1/mermaid", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "class work current;")
}

func TestServer_UnknownEntity(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/instances/ghost", ""},
		{http.MethodGet, "/instances/ghost/history", ""},
		{http.MethodGet, "/instances/ghost/events", ""},
		{http.MethodPut, "/instances/ghost/stationary", `{"stationary":true}`},
		{http.MethodPost, "/instances/ghost/restart", ""},
	} {
		code, _ := f.do(t, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, code, "%s %s", tc.method, tc.path)
	}
}

func TestServer_Control(t *testing.T) {
	f := newFixture(t)
	f.advance(t, 0)

	code, _ := f.do(t, http.MethodPut, "/instances/e1/stationary", `{"stationary":true}`)
	assert.Equal(t, http.StatusNoContent, code)
	inst, err := f.eng.Snapshot(context.Background(), "e1")
	require.NoError(t, err)
	assert.True(t, inst.Stationary)

	code, _ = f.do(t, http.MethodPut, "/instances/e1/stationary", `nope`)
	assert.Equal(t, http.StatusBadRequest, code)

	// Restarting a live instance is a conflict.
	code, _ = f.do(t, http.MethodPost, "/instances/e1/restart", "")
	assert.Equal(t, http.StatusConflict, code)

	code, _ = f.do(t, http.MethodPut, "/instances/e1/stationary", `{"stationary":false}`)
	require.Equal(t, http.StatusNoContent, code)
	*f.done = true
	assert.Equal(t, domain.OutcomeTerminate, f.advance(t, 1).Kind)

	code, _ = f.do(t, http.MethodPost, "/instances/e1/restart", "")
	assert.Equal(t, http.StatusNoContent, code)
	terminated, err := f.eng.IsTerminated(context.Background(), "e1")
	require.NoError(t, err)
	assert.False(t, terminated)
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t, arborhttp.WithMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "arbor_transitions_total 1\n")
	})))
	code, body := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "arbor_transitions_total")

	g := newFixture(t)
	code, _ = g.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_SubscribeEvents(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.http.URL+"/instances/e1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	// The ping is written after the subscription is registered.
	require.Equal(t, 1, f.server.Streams.Subscribers("e1"))
	f.advance(t, 0)

	var data string
	for data == "" {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			data = strings.TrimPrefix(strings.TrimSpace(line), "data: ")
		}
	}

	var evt domain.TransitionEvent
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, domain.EventTransition, evt.Type)
	assert.Equal(t, domain.EntityID("e1"), evt.Entity)
	assert.Equal(t, domain.StateID("work"), evt.Outcome.To)
}

func TestStreamManager_GlobalAndUnsubscribe(t *testing.T) {
	sm := arborhttp.NewStreamManager()
	global, cancelGlobal := sm.Subscribe("")
	one, cancelOne := sm.Subscribe("e1")

	sm.Broadcast("e2", "x")
	assert.Equal(t, "x", <-global)
	assert.Empty(t, one)

	sm.Broadcast("e1", "y")
	assert.Equal(t, "y", <-global)
	assert.Equal(t, "y", <-one)

	cancelOne()
	cancelOne()
	_, open := <-one
	assert.False(t, open)
	assert.Equal(t, 0, sm.Subscribers("e1"))
	cancelGlobal()
}

func TestServer_APIDocument(t *testing.T) {
	doc, err := arborhttp.GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "Arbor API", doc.Info.Title)

	f := newFixture(t, arborhttp.WithVersion("1.2.3"))
	f.advance(t, 0)

	// Every documented GET is routed.
	for path, item := range doc.Paths.Map() {
		if item.Get == nil || strings.HasSuffix(path, "/events") {
			continue
		}
		code, _ := f.do(t, http.MethodGet, strings.ReplaceAll(path, "{entity}", "e1"), "")
		assert.Equal(t, http.StatusOK, code, path)
	}

	code, body := f.do(t, http.MethodGet, "/info", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"app":"arbor-http","version":"1.2.3","api_version":"1.0.0"}`, body)

	code, body = f.do(t, http.MethodGet, "/openapi.yaml", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "openapi: 3.0.3")
}

func TestServer_HistoryLimit(t *testing.T) {
	f := newFixture(t)
	f.advance(t, 0)
	*f.done = true
	f.advance(t, 1)
	*f.done = false
	require.NoError(t, f.eng.Restart(context.Background(), "e1"))
	f.advance(t, 2)

	code, body := f.do(t, http.MethodGet, "/instances/e1/history", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"from":"","to":"work","tick":0},{"from":"","to":"work","tick":2}]`, body)

	code, body = f.do(t, http.MethodGet, "/instances/e1/history?limit=1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[{"from":"","to":"work","tick":2}]`, body)

	code, body = f.do(t, http.MethodGet, "/instances/e1/history?limit=0", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)

	for _, bad := range []string{"abc", "-1"} {
		code, _ = f.do(t, http.MethodGet, "/instances/e1/history?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, code, bad)
	}
}

func TestServer_EscapedEntity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.eng.Attach(context.Background(), "squad/7", "root"))

	code, body := f.do(t, http.MethodGet, "/instances/squad%2F7", "")
	assert.Equal(t, http.StatusOK, code)
	var inst machine.Instance
	require.NoError(t, json.Unmarshal([]byte(body), &inst))
	assert.Equal(t, domain.EntityID("squad/7"), inst.Entity)
}
