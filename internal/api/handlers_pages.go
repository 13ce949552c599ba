package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/wikitoc/internal/directive"
	"github.com/dgallion1/wikitoc/internal/remote"
	"github.com/dgallion1/wikitoc/internal/toc"
	"github.com/dgallion1/wikitoc/internal/wikipage"
	"github.com/go-chi/chi/v5"
)

// handleChildren lists a page's children for other wikis that use it as a
// virtual source.
func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.Find(r.URL.Query().Get("page"))
	if err != nil {
		pageError(w, err)
		return
	}

	resp := remote.ChildrenResponse{Page: page.Path(), Children: []remote.ChildEntry{}}
	for _, c := range page.ChildPages() {
		resp.Children = append(resp.Children, remote.ChildEntry{Name: c.Name(), Path: c.Path()})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.Find(chi.URLParam(r, "path"))
	if err != nil {
		pageError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page.Snapshot())
}

// handlePageHTML renders a whole page, contents directives included.
func (s *Server) handlePageHTML(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.Find(chi.URLParam(r, "path"))
	if err != nil {
		pageError(w, err)
		return
	}
	out, err := s.pages.RenderPage(r.Context(), page)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	writeHTML(w, out)
}

// handlePageTOC renders a single directive, "!contents" unless the
// directive query parameter says otherwise, against a page.
func (s *Server) handlePageTOC(w http.ResponseWriter, r *http.Request) {
	page, err := s.store.Find(chi.URLParam(r, "path"))
	if err != nil {
		pageError(w, err)
		return
	}

	line := r.URL.Query().Get("directive")
	if line == "" {
		line = directive.Keyword
	}
	if !strings.HasSuffix(line, "\n") && !strings.HasSuffix(line, "\r") {
		line += "\n"
	}
	inv := directive.Match(line)
	if inv == nil || inv.Len != len(line) {
		jsonError(w, "not a contents directive: "+strings.TrimRight(line, "\r\n"), http.StatusBadRequest)
		return
	}

	out, err := s.toc.Render(r.Context(), page, *inv)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	writeHTML(w, out)
}

type putPageRequest struct {
	Content     string  `json:"content"`
	VirtualWiki *string `json:"virtual_wiki,omitempty"`
}

// handlePutPage creates or replaces a page, creating missing ancestors.
func (s *Server) handlePutPage(w http.ResponseWriter, r *http.Request) {
	var req putPageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}

	path := chi.URLParam(r, "path")
	page, err := s.store.Put(path, req.Content)
	if err != nil {
		pageError(w, err)
		return
	}
	if req.VirtualWiki != nil {
		if err := s.store.SetVirtualWiki(path, *req.VirtualWiki); err != nil {
			pageError(w, err)
			return
		}
	}
	if err := s.persist(); err != nil {
		s.log.Error("persist failed", "path", path, "error", err)
		jsonError(w, "failed to save page: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page.Snapshot())
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	if err := s.store.Remove(path); err != nil {
		pageError(w, err)
		return
	}
	if err := s.persist(); err != nil {
		s.log.Error("persist failed", "path", path, "error", err)
		jsonError(w, "failed to save wiki: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renderError maps a rendering failure to a response. Anything but a
// malformed invocation comes from resolving pages, usually remote ones.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, toc.ErrMalformedInvocation) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Warn("render failed", "path", r.URL.Path, "error", err)
	jsonError(w, "render failed: "+err.Error(), http.StatusBadGateway)
}

func pageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wikipage.ErrNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, wikipage.ErrInvalidName), errors.Is(err, wikipage.ErrRoot):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
