package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aleksaelezovic/tritensor/internal/logger"
	"github.com/aleksaelezovic/tritensor/pkg/sparql"
	"github.com/aleksaelezovic/tritensor/pkg/store"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxBodySize bounds request bodies read into memory
const maxBodySize = 64 << 20

// request carries the per-request state handed to handlers
type request struct {
	id       string
	log      *zap.SugaredLogger
	deadline time.Time
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *request)

// handle wraps fn with CORS headers, a request id, the evaluation slot
// semaphore and access logging
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		start := time.Now()
		req := &request{id: uuid.NewString(), deadline: s.deadline()}
		req.log = s.log.With(logger.FieldRequestID, req.id)
		w.Header().Set("X-Request-Id", req.id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		ctx := r.Context()
		if !req.deadline.IsZero() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, req.deadline)
			defer cancel()
		}

		if err := s.slots.Acquire(ctx, 1); err != nil {
			s.fail(rec, req, errors.Mark(errors.Wrap(err, "waiting for an evaluation slot"), store.ErrTimeout))
		} else {
			fn(rec, r.WithContext(ctx), req)
			s.slots.Release(1)
		}

		fields := []interface{}{
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, rec.status,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		}
		switch {
		case rec.status >= 500:
			req.log.Errorw("request failed", fields...)
		case rec.status >= 400:
			req.log.Warnw("request rejected", fields...)
		default:
			req.log.Infow("request served", fields...)
		}
	}
}

// statusFor maps an evaluation error to its HTTP status
func statusFor(err error) int {
	var perr *sparql.ParseError
	switch {
	case errors.Is(err, store.ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.As(err, &perr), errors.Is(err, sparql.ErrUnsupported):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err
func (s *Server) fail(w http.ResponseWriter, req *request, err error) {
	status := statusFor(err)
	if status >= 500 && status != http.StatusServiceUnavailable {
		req.log.Errorw("evaluation failed", logger.FieldError, err)
	} else {
		req.log.Debugw("evaluation rejected", logger.FieldError, err)
	}
	s.writeError(w, status, err.Error())
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]any{
		"error": map[string]any{
			"code":    statusCode,
			"message": message,
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		statusCode = http.StatusInternalServerError
		data = []byte(`{"error":{"code":500,"message":"encoding response"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(data) // #nosec G104 - client disconnects are not actionable
}

var (
	// errBadRequest marks client errors that are not SPARQL parse errors
	errBadRequest = errors.New("bad request")
	errMethod     = errors.New("method not allowed")
)

// extractQuery reads the query text following the SPARQL 1.1 Protocol: the
// query parameter for GET and form posts, the body otherwise
// https://www.w3.org/TR/sparql11-protocol/
func extractQuery(r *http.Request) (string, error) {
	var text string
	switch r.Method {
	case http.MethodGet:
		text = r.URL.Query().Get("query")
		if text == "" {
			return "", errors.Mark(errors.New("missing 'query' parameter"), errBadRequest)
		}

	case http.MethodPost:
		contentType := r.Header.Get("Content-Type")
		if strings.Contains(contentType, "application/x-www-form-urlencoded") {
			if err := r.ParseForm(); err != nil {
				return "", errors.Mark(errors.Wrap(err, "parsing form"), errBadRequest)
			}
			text = r.FormValue("query")
			if text == "" {
				return "", errors.Mark(errors.New("missing 'query' parameter"), errBadRequest)
			}
		} else {
			body, err := readBody(r)
			if err != nil {
				return "", err
			}
			text = body
		}

	default:
		return "", errors.Mark(errors.New("method not allowed, use GET or POST"), errMethod)
	}

	if strings.TrimSpace(text) == "" {
		return "", errors.Mark(errors.New("empty query"), errBadRequest)
	}
	return text, nil
}

func readBody(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return "", errors.Mark(errors.Wrap(err, "reading request body"), errBadRequest)
	}
	return string(body), nil
}

// requestError writes the response for an error from extractQuery
func (s *Server) requestError(w http.ResponseWriter, err error) {
	if errors.Is(err, errMethod) {
		s.writeError(w, http.StatusMethodNotAllowed, err.Error())
		return
	}
	s.writeError(w, http.StatusBadRequest, err.Error())
}
