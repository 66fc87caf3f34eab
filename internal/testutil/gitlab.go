// Package testutil provides an in-process fake of the GitLab REST endpoints
// the fixtures touch, so fixture and reset logic can be tested without Docker.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xanzy/go-gitlab"
)

// Resource kinds tracked by the fake.
const (
	Groups            = "groups"
	Projects          = "projects"
	Users             = "users"
	Issues            = "issues"
	Labels            = "labels"
	GroupLabels       = "group_labels"
	Variables         = "variables"
	DeployTokens      = "deploy_tokens"
	GroupDeployTokens = "group_deploy_tokens"
)

// Record is a stored resource as it is rendered to JSON.
type Record map[string]any

// GitLab is a fake GitLab API server.
type GitLab struct {
	srv *httptest.Server

	mu      sync.Mutex
	nextID  int
	records map[string]map[int]Record
	deletes map[string]int
}

// NewGitLab starts a fake server with the root user (id 1) already present.
// The server is closed when the test ends.
func NewGitLab(tb testing.TB) *GitLab {
	tb.Helper()

	g := &GitLab{
		nextID:  1,
		records: make(map[string]map[int]Record),
		deletes: make(map[string]int),
	}
	g.Seed(Users, Record{"username": "root", "email": "admin@example.com", "name": "Administrator"})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Record{"version": "17.0.0-fake", "revision": "0000000"})
	})

	mux.HandleFunc("GET /api/v4/groups", g.list(Groups))
	mux.HandleFunc("POST /api/v4/groups", g.create(Groups, "", g.newGroup))
	mux.HandleFunc("DELETE /api/v4/groups/{id}", g.remove(Groups, ""))
	mux.HandleFunc("POST /api/v4/groups/{id}/labels", g.create(GroupLabels, Groups, g.newLabel))
	mux.HandleFunc("POST /api/v4/groups/{id}/deploy_tokens", g.create(GroupDeployTokens, Groups, g.newDeployToken))
	mux.HandleFunc("DELETE /api/v4/groups/{id}/deploy_tokens/{child}", g.remove(GroupDeployTokens, Groups))

	mux.HandleFunc("GET /api/v4/projects", g.list(Projects))
	mux.HandleFunc("POST /api/v4/projects", g.create(Projects, "", g.newProject))
	mux.HandleFunc("DELETE /api/v4/projects/{id}", g.remove(Projects, ""))
	mux.HandleFunc("POST /api/v4/projects/{id}/issues", g.create(Issues, Projects, g.newIssue))
	mux.HandleFunc("DELETE /api/v4/projects/{id}/issues/{child}", g.remove(Issues, Projects))
	mux.HandleFunc("POST /api/v4/projects/{id}/labels", g.create(Labels, Projects, g.newLabel))
	mux.HandleFunc("POST /api/v4/projects/{id}/variables", g.create(Variables, Projects, g.newVariable))
	mux.HandleFunc("POST /api/v4/projects/{id}/deploy_tokens", g.create(DeployTokens, Projects, g.newDeployToken))
	mux.HandleFunc("DELETE /api/v4/projects/{id}/deploy_tokens/{child}", g.remove(DeployTokens, Projects))

	mux.HandleFunc("GET /api/v4/users", g.list(Users))
	mux.HandleFunc("POST /api/v4/users", g.create(Users, "", g.newUser))
	mux.HandleFunc("DELETE /api/v4/users/{id}", g.remove(Users, ""))

	g.srv = httptest.NewServer(mux)
	tb.Cleanup(g.srv.Close)
	return g
}

// URL returns the base URL of the fake web service (without /api/v4).
func (g *GitLab) URL() string {
	return g.srv.URL
}

// Client returns a go-gitlab client pointed at the fake.
func (g *GitLab) Client(tb testing.TB) *gitlab.Client {
	tb.Helper()

	client, err := gitlab.NewClient("fake-token", gitlab.WithBaseURL(g.srv.URL+"/api/v4"))
	require.NoError(tb, err)
	return client
}

// Seed stores rec under kind and returns its id.
func (g *GitLab) Seed(kind string, rec Record) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.insertLocked(kind, rec)
}

// Count returns the number of live records of kind.
func (g *GitLab) Count(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records[kind])
}

// Has reports whether a record of kind with id exists.
func (g *GitLab) Has(kind string, id int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.records[kind][id]
	return ok
}

// Get returns a copy of the record of kind with id.
func (g *GitLab) Get(kind string, id int) (Record, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[kind][id]
	if !ok {
		return nil, false
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}

// Delete removes a record behind the client's back, as if another test or
// GitLab's background jobs had already deleted it.
func (g *GitLab) Delete(kind string, id int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleteLocked(kind, id)
}

// Deletes returns how many DELETE requests were received for kind,
// including those that answered 404.
func (g *GitLab) Deletes(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deletes[kind]
}

func (g *GitLab) insertLocked(kind string, rec Record) int {
	id := g.nextID
	g.nextID++
	rec["id"] = id
	if g.records[kind] == nil {
		g.records[kind] = make(map[int]Record)
	}
	g.records[kind][id] = rec
	return id
}

// deleteLocked removes a record and everything owned by it.
func (g *GitLab) deleteLocked(kind string, id int) {
	delete(g.records[kind], id)

	owner := map[string]string{Projects: "project_id", Groups: "group_id"}[kind]
	if owner == "" {
		return
	}
	for child, recs := range g.records {
		for cid, rec := range recs {
			if rec[owner] == id {
				delete(g.records[child], cid)
			}
		}
	}
}

// builder validates a create request and returns the record to store.
// parent is the owning record's id, or 0 for top-level kinds.
type builder func(body Record, parent int) (Record, error)

type apiError struct {
	status  int
	message any
}

func (e *apiError) Error() string {
	return fmt.Sprint(e.message)
}

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

func taken(field string) error {
	return &apiError{status: http.StatusBadRequest, message: map[string][]string{field: {"has already been taken"}}}
}

func (g *GitLab) create(kind, parentKind string, build builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Record
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, Record{"message": err.Error()})
			return
		}

		g.mu.Lock()
		defer g.mu.Unlock()

		parent := 0
		if parentKind != "" {
			id, ok := g.lookupLocked(parentKind, r.PathValue("id"))
			if !ok {
				writeNotFound(w, parentKind)
				return
			}
			parent = id
		}

		rec, err := build(body, parent)
		if err != nil {
			ae := err.(*apiError)
			writeJSON(w, ae.status, Record{"message": ae.message})
			return
		}
		g.insertLocked(kind, rec)
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (g *GitLab) remove(kind, parentKind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()

		g.deletes[kind]++

		if parentKind == "" {
			id, ok := g.lookupLocked(kind, r.PathValue("id"))
			if !ok {
				writeNotFound(w, kind)
				return
			}
			g.deleteLocked(kind, id)
			w.WriteHeader(http.StatusAccepted)
			return
		}

		parent, ok := g.lookupLocked(parentKind, r.PathValue("id"))
		if !ok {
			writeNotFound(w, parentKind)
			return
		}
		child, err := strconv.Atoi(r.PathValue("child"))
		if err != nil {
			writeNotFound(w, kind)
			return
		}

		// issues are addressed by their project-scoped iid, tokens by id
		field := "id"
		if kind == Issues {
			field = "iid"
		}
		for id, rec := range g.records[kind] {
			if rec[ownerField(parentKind)] == parent && rec[field] == child {
				g.deleteLocked(kind, id)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeNotFound(w, kind)
	}
}

// list serves a page of records ordered by id, with GitLab's pagination headers.
func (g *GitLab) list(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := queryInt(r, "page", 1)
		perPage := queryInt(r, "per_page", 20)

		g.mu.Lock()
		ids := make([]int, 0, len(g.records[kind]))
		for id := range g.records[kind] {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		start := min((page-1)*perPage, len(ids))
		end := min(start+perPage, len(ids))
		out := make([]Record, 0, end-start)
		for _, id := range ids[start:end] {
			out = append(out, g.records[kind][id])
		}
		g.mu.Unlock()

		w.Header().Set("X-Page", strconv.Itoa(page))
		w.Header().Set("X-Per-Page", strconv.Itoa(perPage))
		w.Header().Set("X-Total", strconv.Itoa(len(ids)))
		w.Header().Set("X-Total-Pages", strconv.Itoa((len(ids)+perPage-1)/perPage))
		if end < len(ids) {
			w.Header().Set("X-Next-Page", strconv.Itoa(page+1))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (g *GitLab) lookupLocked(kind, raw string) (int, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	_, ok := g.records[kind][id]
	return id, ok
}

func (g *GitLab) existsLocked(kind string, match func(Record) bool) bool {
	for _, rec := range g.records[kind] {
		if match(rec) {
			return true
		}
	}
	return false
}

func (g *GitLab) newGroup(body Record, _ int) (Record, error) {
	name, path := str(body, "name"), str(body, "path")
	if name == "" || path == "" {
		return nil, badRequest("name, path are missing")
	}
	if g.existsLocked(Groups, func(r Record) bool { return r["path"] == path }) {
		return nil, taken("path")
	}
	return Record{"name": name, "path": path, "full_path": path}, nil
}

func (g *GitLab) newProject(body Record, _ int) (Record, error) {
	name := str(body, "name")
	if name == "" {
		return nil, badRequest("name is missing")
	}
	if g.existsLocked(Projects, func(r Record) bool { return r["name"] == name }) {
		return nil, taken("name")
	}
	return Record{"name": name, "path": name, "path_with_namespace": "root/" + name}, nil
}

func (g *GitLab) newUser(body Record, _ int) (Record, error) {
	for _, field := range []string{"email", "username", "name", "password"} {
		if str(body, field) == "" {
			return nil, badRequest("%s is missing", field)
		}
	}
	username := str(body, "username")
	if g.existsLocked(Users, func(r Record) bool { return r["username"] == username }) {
		return nil, taken("username")
	}
	return Record{"username": username, "email": str(body, "email"), "name": str(body, "name")}, nil
}

func (g *GitLab) newIssue(body Record, project int) (Record, error) {
	title := str(body, "title")
	if title == "" {
		return nil, badRequest("title is missing")
	}
	iid := 1
	for _, rec := range g.records[Issues] {
		if rec["project_id"] == project {
			iid++
		}
	}
	return Record{
		"iid": iid, "project_id": project,
		"title": title, "description": str(body, "description"), "state": "opened",
	}, nil
}

func (g *GitLab) newLabel(body Record, parent int) (Record, error) {
	name, color := str(body, "name"), str(body, "color")
	if name == "" || color == "" {
		return nil, badRequest("name, color are missing")
	}
	// group and project labels share the handler; only one owner field is set
	rec := Record{"name": name, "color": color, "description": str(body, "description")}
	if g.hasParentLocked(Projects, parent) {
		rec["project_id"] = parent
	} else {
		rec["group_id"] = parent
	}
	return rec, nil
}

func (g *GitLab) newVariable(body Record, project int) (Record, error) {
	key := str(body, "key")
	if key == "" {
		return nil, badRequest("key is missing")
	}
	if g.existsLocked(Variables, func(r Record) bool { return r["project_id"] == project && r["key"] == key }) {
		return nil, taken("key")
	}
	return Record{"key": key, "value": str(body, "value"), "project_id": project}, nil
}

func (g *GitLab) newDeployToken(body Record, parent int) (Record, error) {
	name := str(body, "name")
	if name == "" {
		return nil, badRequest("name is missing")
	}
	scopes, _ := body["scopes"].([]any)
	if len(scopes) == 0 {
		return nil, badRequest("scopes is missing")
	}
	rec := Record{
		"name":       name,
		"username":   str(body, "username"),
		"expires_at": body["expires_at"],
		"scopes":     scopes,
		"revoked":    false,
		"expired":    false,
		"token":      "fake-deploy-token-" + name,
	}
	if g.hasParentLocked(Projects, parent) {
		rec["project_id"] = parent
	} else {
		rec["group_id"] = parent
	}
	return rec, nil
}

// hasParentLocked tells project and group parents apart; ids are unique
// across kinds so membership is unambiguous.
func (g *GitLab) hasParentLocked(kind string, id int) bool {
	_, ok := g.records[kind][id]
	return ok
}

func ownerField(parentKind string) string {
	if parentKind == Projects {
		return "project_id"
	}
	return "group_id"
}

func str(body Record, key string) string {
	s, _ := body[key].(string)
	return s
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeNotFound(w http.ResponseWriter, kind string) {
	writeJSON(w, http.StatusNotFound, Record{"message": "404 " + kind + " Not Found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
