package v1

import (
	"net/http"
	"net/url"

	chi "github.com/go-chi/chi/v5"
)

// nameParam returns the decoded {name} segment; category names may contain spaces.
func nameParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// GET /v1/categories/{kind}
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.categories.List(r.Context(), userFrom(r.Context()).ID, kindParam(r))
	if err != nil {
		s.writeServiceErr(w, r, err, "list categories")
		return
	}
	out := listResponse[categoryResponse]{Items: make([]categoryResponse, 0, len(list))}
	for _, c := range list {
		out.Items = append(out.Items, toCategoryResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}

// POST /v1/categories/{kind}
func (s *Server) postCategory(w http.ResponseWriter, r *http.Request) {
	name, _ := r.Context().Value(ctxKeyPostCategory).(string)
	c, err := s.categories.Add(r.Context(), userFrom(r.Context()).ID, kindParam(r), name)
	if err != nil {
		s.writeServiceErr(w, r, err, "add category")
		return
	}
	toJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// PATCH /v1/categories/{kind}/{name}
func (s *Server) renameCategory(w http.ResponseWriter, r *http.Request) {
	newName, _ := r.Context().Value(ctxKeyRenameCategory).(string)
	n, err := s.categories.Rename(r.Context(), userFrom(r.Context()).ID, kindParam(r), nameParam(r), newName)
	if err != nil {
		s.writeServiceErr(w, r, err, "rename category")
		return
	}
	cascadeRecords.WithLabelValues("rename").Add(float64(n))
	toJSON(w, http.StatusOK, cascadeResponse{RecordsUpdated: n})
}

// DELETE /v1/categories/{kind}/{name}
func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	n, err := s.categories.Delete(r.Context(), userFrom(r.Context()).ID, kindParam(r), nameParam(r))
	if err != nil {
		s.writeServiceErr(w, r, err, "delete category")
		return
	}
	cascadeRecords.WithLabelValues("delete").Add(float64(n))
	toJSON(w, http.StatusOK, cascadeResponse{RecordsUpdated: n})
}

// GET /v1/categories/{kind}/{name}/monthly?month=YYYY-MM
func (s *Server) monthlyByCategory(w http.ResponseWriter, r *http.Request) {
	lines, err := s.records.MonthlyByCategory(r.Context(), userFrom(r.Context()).ID, kindParam(r), nameParam(r), r.URL.Query().Get("month"))
	if err != nil {
		s.writeServiceErr(w, r, err, "list monthly entries")
		return
	}
	out := listResponse[categoryLineResponse]{Items: make([]categoryLineResponse, 0, len(lines))}
	for _, l := range lines {
		out.Items = append(out.Items, toCategoryLineResponse(l))
	}
	toJSON(w, http.StatusOK, out)
}
