package server

import (
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/server/results"
	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/aleksaelezovic/tritensor/pkg/tensor"
	"github.com/cockroachdb/errors"
)

const sparqlUpdateContentType = "application/sparql-update"

// handleRoot serves a query UI for the endpoint
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	endpointURL := fmt.Sprintf("%s://%s/sparql", scheme, r.Host)
	size, err := s.store.Size()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, rootPage, endpointURL, size, endpointURL) // #nosec G104 - client disconnects are not actionable
}

const rootPage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>tritensor SPARQL endpoint</title>
    <link href="https://unpkg.com/@zazuko/yasgui@4.5.0/build/yasgui.min.css" rel="stylesheet" type="text/css" />
    <script src="https://unpkg.com/@zazuko/yasgui@4.5.0/build/yasgui.min.js"></script>
    <style>
        body { margin: 0; font-family: Arial, sans-serif; display: flex; flex-direction: column; height: 100vh; }
        .header { background: #2c3e50; color: white; padding: 15px 20px; }
        .header code { background: rgba(255,255,255,0.2); padding: 2px 6px; border-radius: 3px; }
        #yasgui { flex: 1; overflow: hidden; }
    </style>
</head>
<body>
    <div class="header">
        Endpoint: <code>%s</code> | Triples: <strong>%d</strong>
    </div>
    <div id="yasgui"></div>
    <script>
        new Yasgui(document.getElementById("yasgui"), {
            requestConfig: { endpoint: "%s", method: "POST" },
            copyEndpointOnNewTab: false
        });
    </script>
</body>
</html>`

// handleSPARQL evaluates SELECT and ASK queries according to the SPARQL 1.1
// Protocol. The result format follows the Accept header.
func (s *Server) handleSPARQL(w http.ResponseWriter, r *http.Request, req *request) {
	text, err := extractQuery(r)
	if err != nil {
		s.requestError(w, err)
		return
	}
	q, err := s.parseQuery(text)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	req.log.Debugw("evaluating query", logger.FieldQuery, text, "form", q.Form.String())

	format := results.Negotiate(r.Header.Get("Accept"))
	var data []byte
	switch q.Form {
	case sparql.QueryFormAsk:
		var ok bool
		ok, err = s.store.EvalAsk(q, req.deadline)
		if err == nil {
			data, err = results.Ask(format, ok)
		}
	default:
		var sol *store.Solutions
		sol, err = s.store.EvalSelect(q, req.deadline)
		if err == nil {
			data, err = results.Select(format, sol)
			_ = sol.Close()
		}
	}
	if err != nil {
		s.fail(w, req, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data) // #nosec G104 - client disconnects are not actionable
}

// handleCount answers {"count": n} with the number of solutions of a query
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request, req *request) {
	text, err := extractQuery(r)
	if err != nil {
		s.requestError(w, err)
		return
	}
	q, err := s.parseQuery(text)
	if err != nil {
		s.fail(w, req, err)
		return
	}

	n, err := s.store.Count(q, req.deadline)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	req.log.Debugw("counted solutions", logger.FieldQuery, text, logger.FieldCount, n)
	s.writeJSON(w, http.StatusOK, map[string]uint64{"count": n})
}

// handleUpdate applies an INSERT DATA or DELETE DATA request and answers
// {"mutation_count": n}
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, req *request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed, use POST")
		return
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != sparqlUpdateContentType {
		s.writeError(w, http.StatusBadRequest, "Expected content-type: "+sparqlUpdateContentType)
		return
	}
	body, err := readBody(r)
	if err != nil {
		s.requestError(w, err)
		return
	}

	if pastDeadline(req.deadline) {
		s.fail(w, req, store.ErrTimeout)
		return
	}
	update, err := sparql.ParseUpdate(body)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	if pastDeadline(req.deadline) {
		s.fail(w, req, store.ErrTimeout)
		return
	}

	if len(update.Triples) == 0 {
		s.writeJSON(w, http.StatusOK, map[string]uint64{"mutation_count": 0})
		return
	}
	if s.updates != nil {
		if err := s.updates.Wait(r.Context()); err != nil {
			s.fail(w, req, errors.Mark(errors.Wrap(err, "waiting for the update limiter"), store.ErrTimeout))
			return
		}
	}

	entries := make([]tensor.NonZeroEntry, len(update.Triples))
	for i, t := range update.Triples {
		entries[i] = tensor.EntryOf(t)
	}

	n, err := s.mutate(req, update.Operation, entries)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint64{"mutation_count": n})
}

func (s *Server) mutate(req *request, op sparql.UpdateOperation, entries []tensor.NonZeroEntry) (uint64, error) {
	wl := s.store.AcquireWriterLock()
	defer wl.Release()

	before, err := s.store.Size()
	if err != nil {
		return 0, err
	}
	var n uint64
	if op == sparql.UpdateDeleteData {
		n, err = s.store.Remove(entries, wl, store.WithBulkSize(s.bulkSize))
	} else {
		n, err = s.store.Insert(entries, wl, store.WithBulkSize(s.bulkSize))
	}
	if err != nil {
		return 0, err
	}
	after, err := s.store.Size()
	if err != nil {
		return 0, err
	}

	req.log.Debugw("update applied",
		logger.FieldOperation, op.String(),
		logger.FieldTripleCount, len(entries),
		logger.FieldSizeBefore, before,
		logger.FieldSizeAfter, after,
		logger.FieldMutationCount, n)
	return n, nil
}

func pastDeadline(deadline time.Time) bool {
	return !deadline.IsZero() && !time.Now().Before(deadline)
}
