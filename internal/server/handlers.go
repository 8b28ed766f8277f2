package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/thoreinstein/savekeep/internal/journal"
	"github.com/thoreinstein/savekeep/internal/snapshot"
)

// snapshotView adds the id, which is not part of the stored manifest.
type snapshotView struct {
	ID string `json:"id"`
	*snapshot.Manifest
}

func view(m *snapshot.Manifest) snapshotView {
	return snapshotView{ID: m.ID, Manifest: m}
}

type storeInfo struct {
	Root      string `json:"root"`
	Retention int    `json:"retention"`
}

// handleStore handles GET /api/store.
func (s *Server) handleStore(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, storeInfo{Root: s.svc.Root(), Retention: s.svc.Retention()})
}

// handleHistory handles GET /api/history?entry=&op=&limit=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := journal.Filter{Entry: q.Get("entry"), Op: q.Get("op")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	events, err := s.svc.History(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleListEntries handles GET /api/entries.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type addEntryRequest struct {
	Path string `json:"path"`
}

// handleAddEntry handles POST /api/entries.
func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req addEntryRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := s.svc.Add(r.Context(), req.Path)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleGetEntry handles GET /api/entries/{name}.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.svc.Get(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleRemoveEntry handles DELETE /api/entries/{name}.
func (s *Server) handleRemoveEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Remove(r.Context(), mux.Vars(r)["name"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListFiles handles GET /api/entries/{name}/files.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.Files(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

type addFilesRequest struct {
	Paths []string `json:"paths"`
}

type addFilesResponse struct {
	Added []string `json:"added"`
}

// handleAddFiles handles POST /api/entries/{name}/files.
func (s *Server) handleAddFiles(w http.ResponseWriter, r *http.Request) {
	var req addFilesRequest
	if !decode(w, r, &req) {
		return
	}
	added, err := s.svc.AddFiles(r.Context(), mux.Vars(r)["name"], req.Paths)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addFilesResponse{Added: added})
}

// handleRemoveFile handles DELETE /api/entries/{name}/files?path=...
// The path goes in the query string since it contains separators.
func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if strings.TrimSpace(path) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "path query parameter is required")
		return
	}
	if err := s.svc.RemoveFile(r.Context(), mux.Vars(r)["name"], path); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListSnapshots handles GET /api/entries/{name}/snapshots.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Snapshots(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	views := make([]snapshotView, 0, len(list))
	for i := range list {
		views = append(views, view(&list[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleBackup handles POST /api/entries/{name}/snapshots.
func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Backup(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view(m))
}

type pruneResponse struct {
	Removed []string `json:"removed"`
}

// handlePrune handles POST /api/entries/{name}/prune.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.Prune(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pruneResponse{Removed: removed})
}

// handleGetSnapshot handles GET /api/entries/{name}/snapshots/{id}.
func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := s.svc.Snapshot(r.Context(), vars["name"], vars["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(m))
}

type renameRequest struct {
	ID string `json:"id"`
}

// handleRenameSnapshot handles PATCH /api/entries/{name}/snapshots/{id}.
func (s *Server) handleRenameSnapshot(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	m, err := s.svc.Rename(r.Context(), vars["name"], vars["id"], req.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view(m))
}

// handleRemoveSnapshot handles DELETE /api/entries/{name}/snapshots/{id}.
func (s *Server) handleRemoveSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.RemoveOne(r.Context(), vars["name"], vars["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restoreResponse struct {
	Snapshot snapshotView  `json:"snapshot"`
	Restored []string      `json:"restored"`
	Safety   *snapshotView `json:"safety,omitempty"`
}

// handleRestore handles POST /api/entries/{name}/snapshots/{id}/restore.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := s.svc.Restore(r.Context(), vars["name"], vars["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := restoreResponse{Snapshot: view(res.Manifest), Restored: res.Restored}
	if res.Safety != nil {
		v := view(res.Safety)
		resp.Safety = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

type verifyResponse struct {
	*snapshot.VerifyResult
	OK bool `json:"ok"`
}

// handleVerify handles POST /api/entries/{name}/snapshots/{id}/verify.
// A corrupted snapshot is a successful call with ok=false.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := s.svc.Verify(r.Context(), vars["name"], vars["id"])
	if res == nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{VerifyResult: res, OK: res.OK()})
}
