package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aleksaelezovic/tritensor/internal/storage"
	"github.com/aleksaelezovic/tritensor/pkg/server/results"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const seed = `PREFIX ex: <http://example.org/>
INSERT DATA {
	ex:alice ex:knows ex:bob , ex:carol ;
	         ex:name "Alice"@en .
	ex:bob ex:knows ex:carol .
}`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	st, err := storage.NewMemoryStorage()
	require.NoError(t, err)
	bt, err := tensor.Open(st)
	require.NoError(t, err)
	t.Cleanup(func() {
		bt.Close()
		_ = st.Close()
	})

	srv, err := NewServer(store.NewTripleStore(bt), "localhost:0", opts...)
	require.NoError(t, err)
	return srv
}

func do(srv *Server, method, target, contentType, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func update(srv *Server, body string) *httptest.ResponseRecorder {
	return do(srv, http.MethodPost, "/update", "application/sparql-update", body)
}

func mutationCount(t *testing.T, rec *httptest.ResponseRecorder) uint64 {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp struct {
		MutationCount uint64 `json:"mutation_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.MutationCount
}

func countQuery(t *testing.T, srv *Server, query string) uint64 {
	t.Helper()
	rec := do(srv, http.MethodGet, "/count?query="+url.QueryEscape(query), "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Count uint64 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Count
}

func TestUpdate_InsertAndDelete(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, uint64(4), mutationCount(t, update(srv, seed)))
	assert.Equal(t, uint64(0), mutationCount(t, update(srv, seed)))
	assert.Equal(t, uint64(4), countQuery(t, srv, "SELECT * WHERE { ?s ?p ?o }"))

	rec := update(srv, `DELETE DATA { <http://example.org/bob> <http://example.org/knows> <http://example.org/carol> }`)
	assert.Equal(t, uint64(1), mutationCount(t, rec))
	rec = update(srv, `DELETE DATA { <http://example.org/bob> <http://example.org/knows> <http://example.org/carol> }`)
	assert.Equal(t, uint64(0), mutationCount(t, rec))
	assert.Equal(t, uint64(3), countQuery(t, srv, "SELECT * WHERE { ?s ?p ?o }"))
}

func TestUpdate_EmptyBatch(t *testing.T) {
	srv := newTestServer(t)

	// an empty batch must not wait for the writer lock
	wl := srv.store.AcquireWriterLock()
	defer wl.Release()
	assert.Equal(t, uint64(0), mutationCount(t, update(srv, "INSERT DATA { }")))
}

func TestUpdate_Rejections(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, http.MethodPost, "/update", "text/plain", seed)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expected content-type: application/sparql-update")

	rec = do(srv, http.MethodGet, "/update", "application/sparql-update", seed)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = update(srv, "INSERT DATA { ?s <http://example.org/p> 1 }")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = update(srv, "CLEAR ALL")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/update", "application/sparql-update; charset=utf-8",
		"INSERT DATA { <http://example.org/a> <http://example.org/p> 1 }")
	assert.Equal(t, uint64(1), mutationCount(t, rec))
}

func TestSPARQL_SelectJSON(t *testing.T) {
	srv := newTestServer(t)
	mutationCount(t, update(srv, seed))

	query := `PREFIX ex: <http://example.org/> SELECT ?who WHERE { ex:alice ex:knows ?who }`
	rec := do(srv, http.MethodPost, "/sparql", "application/sparql-query", query)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, results.FormatJSON.ContentType(), rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var doc results.SPARQLResultsJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, []string{"who"}, doc.Head.Vars)
	var who []string
	for _, b := range doc.Results.Bindings {
		who = append(who, b["who"].Value)
	}
	assert.ElementsMatch(t, []string{"http://example.org/bob", "http://example.org/carol"}, who)
}

func TestSPARQL_FormAndTSV(t *testing.T) {
	srv := newTestServer(t)
	mutationCount(t, update(srv, seed))

	form := url.Values{"query": {`SELECT ?n WHERE { ?s <http://example.org/name> ?n }`}}
	rec := do(srv, http.MethodPost, "/sparql", "application/x-www-form-urlencoded", form.Encode(),
		"Accept", "text/tab-separated-values")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "?n\n\"Alice\"@en\n", rec.Body.String())
}

func TestSPARQL_Ask(t *testing.T) {
	srv := newTestServer(t)
	mutationCount(t, update(srv, seed))

	rec := do(srv, http.MethodGet, "/sparql?query="+url.QueryEscape(`ASK { ?s <http://example.org/knows> <http://example.org/carol> }`), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"head":{"vars":[]},"boolean":true}`, rec.Body.String())
}

func TestSPARQL_Errors(t *testing.T) {
	srv := newTestServer(t)

	rec := do(srv, http.MethodGet, "/sparql", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/sparql", "application/sparql-query", "SELECT ?x WHERE { ?x ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPost, "/sparql", "application/sparql-query",
		"SELECT ?x WHERE { ?x ?p ?o FILTER(?o > 1) }")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(srv, http.MethodPut, "/sparql", "application/sparql-query", "SELECT * WHERE { ?s ?p ?o }")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(srv, http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSPARQL_Timeout(t *testing.T) {
	srv := newTestServer(t, WithTimeout(time.Nanosecond))

	rec := do(srv, http.MethodGet, "/sparql?query="+url.QueryEscape("SELECT * WHERE { ?s ?p ?o }"), "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = do(srv, http.MethodGet, "/count?query="+url.QueryEscape("SELECT * WHERE { ?s ?p ?o }"), "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = update(srv, seed)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUpdate_RateLimited(t *testing.T) {
	srv := newTestServer(t, WithUpdateRate(0.001), WithTimeout(200*time.Millisecond))

	assert.Equal(t, uint64(4), mutationCount(t, update(srv, seed)))
	rec := update(srv, "INSERT DATA { <http://example.org/x> <http://example.org/p> <http://example.org/y> }")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQueryCache(t *testing.T) {
	srv := newTestServer(t, WithQueryCacheSize(2))
	query := "SELECT * WHERE { ?s ?p ?o }"

	for i := 0; i < 3; i++ {
		countQuery(t, srv, query)
	}
	assert.Equal(t, 1, srv.queries.Len())

	// parse errors are not cached
	do(srv, http.MethodPost, "/count", "application/sparql-query", "SELECT")
	assert.Equal(t, 1, srv.queries.Len())

	srv = newTestServer(t, WithQueryCacheSize(0))
	assert.Equal(t, uint64(0), countQuery(t, srv, query))
	assert.Nil(t, srv.queries)
}

func TestRootPage(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewUnstartedServer(srv.Handler())
	ts.Start()
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}
