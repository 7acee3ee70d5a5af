package service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onexay/objstore/internal/objstore"
	"github.com/onexay/objstore/internal/storage"
	"github.com/onexay/objstore/internal/types"
)

const (
	apiPrefix       = "/api/v1"
	headerRequestID = "X-Request-ID"
	maxValueBytes   = 8 << 20
	contentTypeRaw  = "application/octet-stream"
)

// response is the JSON envelope of every store operation.
type response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// Handler builds the REST routes for the service.
func Handler(svc *Service) http.Handler {
	return svc.logRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts, err := splitPath(strings.TrimPrefix(r.URL.EscapedPath(), apiPrefix))
		if err != nil || len(parts) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown endpoint"})
			return
		}

		switch parts[0] {
		case "swagger":
			svc.handleSwagger(w, r, strings.Join(parts[1:], "/"))
		case "repos":
			if len(parts) == 1 {
				svc.handleRepos(w, r)
				return
			}
			svc.handleRepo(w, r, parts[1], parts[2:])
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown resource"})
		}
	}))
}

func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	raw := strings.Split(path, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		decoded, err := url.PathUnescape(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, decoded)
	}
	return parts, nil
}

func (s *Service) handleRepos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names, err := s.Repos(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, names)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
			return
		}
		if err := s.CreateRepo(r.Context(), req.Name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Service) handleRepo(w http.ResponseWriter, r *http.Request, repo string, rest []string) {
	resource := ""
	if len(rest) > 0 {
		resource = rest[0]
	}

	switch {
	case resource == "stage" && len(rest) == 2 && r.Method == http.MethodPut:
		s.handleAdd(w, r, repo, rest[1])
	case resource == "stage" && len(rest) == 2 && r.Method == http.MethodDelete:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Remove(rest[1])
			return res.OK(), http.StatusOK, envelope(res, res.Value())
		})
	case (resource == "" || resource == "status") && len(rest) <= 1 && r.Method == http.MethodGet:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Status()
			return false, http.StatusOK, envelope(res, statusView(res.Value()))
		})
	case resource == "commits" && len(rest) == 1 && r.Method == http.MethodPost:
		s.handleCommit(w, r, repo)
	case resource == "commits" && len(rest) == 1 && r.Method == http.MethodGet:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Log()
			views := make([]types.CommitView, 0, len(res.Value()))
			for _, c := range res.Value() {
				views = append(views, commitView(c))
			}
			return false, http.StatusOK, envelope(res, views)
		})
	case resource == "head" && len(rest) == 1 && r.Method == http.MethodGet:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Head()
			return false, http.StatusOK, envelope(res, headView(res.Value()))
		})
	case resource == "checkout" && len(rest) == 1 && r.Method == http.MethodPost:
		var req struct {
			Hash string `json:"hash"`
		}
		if !decode(w, r, &req) {
			return
		}
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Checkout(req.Hash)
			return res.OK(), http.StatusOK, envelope(res, headView(res.Value()))
		})
	case resource == "objects" && len(rest) == 2 && r.Method == http.MethodGet &&
		r.Header.Get("Accept") == contentTypeRaw:
		s.handleGetRaw(w, r, repo, rest[1])
	case resource == "objects" && len(rest) == 2 && r.Method == http.MethodGet:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Get(rest[1])
			return false, http.StatusOK, envelope(res, res.Value())
		})
	case resource == "branches":
		s.handleBranches(w, r, repo, rest[1:])
	case resource == "snapshots" && len(rest) == 1 && r.Method == http.MethodPost:
		digest, err := s.SaveSnapshot(r.Context(), repo)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, response{OK: true, Message: "Saved snapshot " + digest + ".", Value: digest})
	case resource == "snapshots" && len(rest) == 2 && r.Method == http.MethodDelete:
		if err := s.DeleteSnapshot(r.Context(), repo, rest[1]); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{OK: true, Message: "Removed snapshot " + rest[1] + ".", Value: rest[1]})
	case resource == "restore" && len(rest) == 1 && r.Method == http.MethodPost:
		var req struct {
			Ref string `json:"ref"`
		}
		if !decode(w, r, &req) {
			return
		}
		digest, err := s.RestoreSnapshot(r.Context(), repo, req.Ref)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{OK: true, Message: "Restored snapshot " + digest + ".", Value: digest})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown endpoint"})
	}
}

func (s *Service) handleAdd(w http.ResponseWriter, r *http.Request, repo, name string) {
	value, err := io.ReadAll(io.LimitReader(r.Body, maxValueBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unable to read request body"})
		return
	}
	if len(value) > maxValueBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "value too large"})
		return
	}
	s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
		res := st.Add(name, string(value))
		return true, http.StatusOK, envelope(res, res.Value())
	})
}

// handleGetRaw writes the object value as the response body, unencoded.
func (s *Service) handleGetRaw(w http.ResponseWriter, r *http.Request, repo, name string) {
	var res objstore.Result[string]
	err := s.withRepo(r.Context(), repo, func(st *objstore.Store) bool {
		res = st.Get(name)
		return false
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.OK() {
		body := envelope(res, nil)
		writeJSON(w, statusForKind(body.Error), body)
		return
	}
	w.Header().Set("Content-Type", contentTypeRaw)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Value())
}

func (s *Service) handleCommit(w http.ResponseWriter, r *http.Request, repo string) {
	var req struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
		res := st.Commit(req.Message)
		if !res.OK() {
			return false, 0, envelope(res, nil)
		}
		c := res.Value()
		changes := make([]map[string]string, 0, c.Stage().Size())
		for _, ch := range c.Changes() {
			changes = append(changes, map[string]string{"name": ch.Name, "kind": string(ch.Kind)})
		}
		return true, http.StatusCreated, envelope(res, map[string]any{
			"commit":  commitView(c),
			"changes": changes,
			"diff":    c.Diff(),
		})
	})
}

func (s *Service) handleBranches(w http.ResponseWriter, r *http.Request, repo string, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodGet:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Branch().List()
			return false, http.StatusOK, envelope(res, res.Value())
		})
	case len(rest) == 0 && r.Method == http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
			return
		}
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Branch().Create(req.Name)
			return res.OK(), http.StatusCreated, envelope(res, branchName(res.Value()))
		})
	case len(rest) == 1 && r.Method == http.MethodDelete:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Branch().Remove(rest[0])
			return res.OK(), http.StatusOK, envelope(res, branchName(res.Value()))
		})
	case len(rest) == 2 && rest[1] == "checkout" && r.Method == http.MethodPost:
		s.run(w, r, repo, func(st *objstore.Store) (bool, int, response) {
			res := st.Branch().Checkout(rest[0])
			return res.OK(), http.StatusOK, envelope(res, branchName(res.Value()))
		})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown endpoint"})
	}
}

// run executes op under the repository lock. op returns whether it mutated
// the store, the status to use on success and the response body.
func (s *Service) run(w http.ResponseWriter, r *http.Request, repo string, op func(*objstore.Store) (bool, int, response)) {
	var (
		status int
		body   response
	)
	err := s.withRepo(r.Context(), repo, func(st *objstore.Store) bool {
		var mutated bool
		mutated, status, body = op(st)
		return mutated
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !body.OK {
		status = statusForKind(body.Error)
	}
	writeJSON(w, status, body)
}

func envelope[T any](res objstore.Result[T], value any) response {
	if !res.OK() {
		var e *objstore.Error
		kind := ""
		if errors.As(res.Err(), &e) {
			kind = e.Kind.Error()
		}
		return response{Message: res.Message(), Error: kind}
	}
	return response{OK: true, Message: res.Message(), Value: value}
}

func statusForKind(kind string) int {
	switch kind {
	case objstore.ErrNotFound.Error(), objstore.ErrNotCommitted.Error(),
		objstore.ErrNoCommitsYet.Error(), objstore.ErrCommitNotFound.Error():
		return http.StatusNotFound
	case objstore.ErrAlreadyExists.Error(), objstore.ErrCannotRemoveCurrent.Error(),
		objstore.ErrNothingToCommit.Error():
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func commitView(c *objstore.Commit) types.CommitView {
	view := types.CommitView{
		Hash:      c.Hash(),
		Message:   c.Message(),
		Timestamp: c.Timestamp(),
	}
	if p := c.Parent(); p != nil {
		view.Parent = p.Hash()
	}
	if id, err := c.ContentID(); err == nil {
		view.ContentID = id
	}
	return view
}

// headView keeps failed results free of a value.
func headView(c *objstore.Commit) any {
	if c == nil {
		return nil
	}
	return commitView(c)
}

func branchName(b *objstore.Branch) any {
	if b == nil {
		return nil
	}
	return b.Name()
}

func statusView(st objstore.Status) map[string]any {
	return map[string]any{
		"branch":    st.Branch,
		"head":      st.Head,
		"additions": st.Additions,
		"removals":  st.Removals,
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return false
	}
	return true
}

// logRequests tags each request with an id and logs its outcome.
func (s *Service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("request",
			slog.String("id", id),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeError(w http.ResponseWriter, err error) {
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
		return
	}

	var conflict *storage.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": conflict.Error()})
		return
	}

	var validation *storage.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
		return
	}

	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
