package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/askdb/internal/catalog"
	"github.com/kyleking/askdb/internal/pipeline"
	"github.com/kyleking/askdb/internal/query"
	"github.com/kyleking/askdb/internal/testutil"
	"github.com/kyleking/askdb/internal/tools"
)

func newTestServer(t *testing.T, path string) *httptest.Server {
	t.Helper()

	connector := testutil.NewConnector(t, path)
	executor := query.NewExecutor(connector, 0)
	toolbox := tools.New(catalog.New(connector, executor, 3), executor, false)
	p := pipeline.New(pipeline.NewSteps(toolbox, nil))

	srv := httptest.NewServer(New(p, toolbox, testutil.TestTimeout).Routes())
	t.Cleanup(srv.Close)

	return srv
}

func getJSON(t *testing.T, url string, dst any) int {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))

	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, dst any) int {
	t.Helper()

	var buf bytes.Buffer

	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)

	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))

	return resp.StatusCode
}

func TestCatalogRoutes(t *testing.T) {
	srv := newTestServer(t, testutil.SeedSQLite(t, testutil.UsersFixture...))

	var databases struct {
		Databases []string `json:"databases"`
	}

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/databases", &databases))
	assert.Equal(t, []string{"main"}, databases.Databases)

	var tables struct {
		Tables []string `json:"tables"`
	}

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/databases/main/tables", &tables))
	assert.Equal(t, []string{"orders", "users"}, tables.Tables)

	var described struct {
		Schema []struct {
			Name     string `json:"name"`
			Type     string `json:"type"`
			Nullable bool   `json:"nullable"`
		} `json:"schema"`
	}

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/databases/main/tables/users", &described))
	require.Len(t, described.Schema, 4)
	assert.Equal(t, "id", described.Schema[0].Name)
	assert.False(t, described.Schema[0].Nullable)

	var sample struct {
		Rows []map[string]any `json:"rows"`
	}

	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/databases/main/tables/users/sample?limit=2", &sample))
	assert.Len(t, sample.Rows, 2)

	var failure errorResponse

	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/databases/main/tables/users/sample?limit=abc", &failure))
	assert.Equal(t, "validation", string(failure.ErrorType))
}

func TestRunSQLRoute(t *testing.T) {
	srv := newTestServer(t, testutil.SeedSQLite(t, testutil.UsersFixture...))

	var ok struct {
		Count   int              `json:"count"`
		Results []map[string]any `json:"results"`
	}

	status := postJSON(t, srv.URL+"/sql", map[string]string{
		"database": "main",
		"query":    "SELECT name FROM users WHERE city = 'Lyon' ORDER BY id",
	}, &ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, ok.Count)
	require.Len(t, ok.Results, 2)
	assert.Equal(t, "Ada", ok.Results[0]["name"])
	assert.Equal(t, "Grace", ok.Results[1]["name"])

	var scalars struct {
		Results []any `json:"results"`
	}

	status = postJSON(t, srv.URL+"/sql", map[string]string{"query": "SELECT COUNT(*) FROM users"}, &scalars)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{float64(4)}, scalars.Results)

	tests := []struct {
		name    string
		body    any
		status  int
		errType string
	}{
		{"forbidden", map[string]string{"database": "main_db", "query": "DROP TABLE users;"}, http.StatusBadRequest, "validation"},
		{"bad column", map[string]string{"database": "main", "query": "SELECT nme FROM users"}, http.StatusUnprocessableEntity, "execution"},
		{"bad body", "{", http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failure errorResponse

			assert.Equal(t, tt.status, postJSON(t, srv.URL+"/sql", tt.body, &failure))
			assert.Equal(t, tt.errType, string(failure.ErrorType))
			assert.NotEmpty(t, failure.Error)
		})
	}
}

func TestStepRoute(t *testing.T) {
	srv := newTestServer(t, testutil.SeedSQLite(t, testutil.UsersFixture...))

	var env pipeline.Envelope

	status := postJSON(t, srv.URL+"/steps/select_table", map[string]any{
		"user_question": testutil.Question,
		"database":      "main",
		"tables":        []string{"users", "orders"},
	}, &env)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, pipeline.StatusSuccess, env.Status)
	assert.Equal(t, "users", env.SelectedTable)

	env = pipeline.Envelope{}
	status = postJSON(t, srv.URL+"/steps/8", map[string]any{
		"database":  "main",
		"sql_query": "SELECT nme FROM users",
	}, &env)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, pipeline.StatusError, env.Status)
	assert.Equal(t, "execution", string(env.ErrorType))

	var failure errorResponse

	assert.Equal(t, http.StatusNotFound, postJSON(t, srv.URL+"/steps/drop_all", map[string]any{}, &failure))
	assert.NotEmpty(t, failure.Suggestions)

	failure = errorResponse{}
	assert.Equal(t, http.StatusBadRequest, postJSON(t, srv.URL+"/steps/select_table", "{", &failure))
	assert.Equal(t, "validation", string(failure.ErrorType))
}

func TestStepRouteWithoutBody(t *testing.T) {
	srv := newTestServer(t, testutil.SeedSQLite(t, testutil.UsersFixture...))

	resp, err := http.Post(srv.URL+"/steps/discover_databases", "application/json", nil)
	require.NoError(t, err)

	defer resp.Body.Close()

	var env pipeline.Envelope

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pipeline.StatusSuccess, env.Status)
	assert.Equal(t, []string{"main"}, env.Databases)
}

func TestAskRoute(t *testing.T) {
	srv := newTestServer(t, testutil.SeedSQLite(t, testutil.UsersFixture...))

	var result struct {
		State struct {
			SelectedTable   string `json:"selected_table"`
			NaturalResponse string `json:"natural_response"`
		} `json:"state"`
		Steps []pipeline.Envelope `json:"steps"`
	}

	status := postJSON(t, srv.URL+"/ask", map[string]string{"question": testutil.Question}, &result)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, result.Steps, 9)
	assert.Equal(t, "orders", result.State.SelectedTable)
	assert.Equal(t, "I found 3 result(s) for your question.", result.State.NaturalResponse)

	var failure errorResponse

	assert.Equal(t, http.StatusBadRequest, postJSON(t, srv.URL+"/ask", map[string]string{"question": "  "}, &failure))
}

func TestDebugConnectionRoute(t *testing.T) {
	var report tools.ConnectionReport

	srv := newTestServer(t, testutil.SeedSQLite(t, testutil.UsersFixture...))
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/debug/connection", &report))
	assert.Equal(t, tools.StatusOK, report.Status)
	assert.Equal(t, []string{"orders", "users"}, report.SampleTables)

	down := newTestServer(t, testutil.MissingDatabasePath(t))

	report = tools.ConnectionReport{}
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, down.URL+"/debug/connection", &report))
	assert.Equal(t, tools.StatusError, report.Status)
	assert.NotEmpty(t, report.Error)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, statusFor("connectivity"))
	assert.Equal(t, http.StatusInternalServerError, statusFor("internal"))
}
