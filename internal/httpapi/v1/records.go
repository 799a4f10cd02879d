package v1

import (
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/cashbook/internal/finance"
)

func kindParam(r *http.Request) finance.Kind {
	return finance.Kind(strings.ToLower(chi.URLParam(r, "kind")))
}

// GET /v1/records/{date}
func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.records.ListForDate(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "date"))
	if err != nil {
		s.writeServiceErr(w, r, err, "load record")
		return
	}
	toJSON(w, http.StatusOK, toRecordResponse(rec))
}

// POST /v1/records/{date}/{kind}
func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	in, _ := r.Context().Value(ctxKeyPostEntry).(postEntryInput)
	user := userFrom(r.Context())
	kind := kindParam(r)

	var cacheKey string
	if key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey)); key != "" {
		cacheKey = idempotencyKey(user.ID, r.URL.Path, key)
		if s.replay(w, cacheKey, in.BodyHash) {
			return
		}
	}

	e, rec, err := s.records.AddEntry(r.Context(), user.ID, kind, chi.URLParam(r, "date"), in.Entry)
	observeEntryOp(kind, "add", err)
	if err != nil {
		s.writeServiceErr(w, r, err, "add entry")
		return
	}
	resp := entryMutationResponse{Entry: toEntryResponse(e), Record: toRecordResponse(rec)}
	if cacheKey != "" {
		s.remember(w, cacheKey, in.BodyHash, http.StatusCreated, resp)
		return
	}
	toJSON(w, http.StatusCreated, resp)
}

func entryIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		badRequest(w, "invalid entry id")
		return uuid.Nil, false
	}
	return id, true
}

// PATCH /v1/records/{date}/{kind}/entries/{id}
func (s *Server) patchEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	patch, _ := r.Context().Value(ctxKeyPatchEntry).(finance.EntryPatch)
	kind := kindParam(r)
	e, rec, err := s.records.UpdateEntry(r.Context(), userFrom(r.Context()).ID, kind, chi.URLParam(r, "date"), finance.EntryRef{ID: id}, patch)
	observeEntryOp(kind, "update", err)
	if err != nil {
		s.writeServiceErr(w, r, err, "update entry")
		return
	}
	toJSON(w, http.StatusOK, entryMutationResponse{Entry: toEntryResponse(e), Record: toRecordResponse(rec)})
}

// DELETE /v1/records/{date}/{kind}/entries/{id}
func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIDParam(w, r)
	if !ok {
		return
	}
	kind := kindParam(r)
	rec, err := s.records.DeleteEntry(r.Context(), userFrom(r.Context()).ID, kind, chi.URLParam(r, "date"), finance.EntryRef{ID: id})
	observeEntryOp(kind, "delete", err)
	if err != nil {
		s.writeServiceErr(w, r, err, "delete entry")
		return
	}
	toJSON(w, http.StatusOK, toRecordResponse(rec))
}

// POST /v1/records/{date}/{kind}/entries/match
// Locates the entry by (amount, category, remark, timestamp) for clients that
// hold no entry id.
func (s *Server) matchEntry(w http.ResponseWriter, r *http.Request) {
	in, _ := r.Context().Value(ctxKeyMatchEntry).(matchEntryInput)
	user := userFrom(r.Context())
	kind := kindParam(r)
	date := chi.URLParam(r, "date")
	if in.Delete {
		rec, err := s.records.DeleteEntry(r.Context(), user.ID, kind, date, in.Ref)
		observeEntryOp(kind, "delete", err)
		if err != nil {
			s.writeServiceErr(w, r, err, "delete entry")
			return
		}
		toJSON(w, http.StatusOK, toRecordResponse(rec))
		return
	}
	e, rec, err := s.records.UpdateEntry(r.Context(), user.ID, kind, date, in.Ref, in.Patch)
	observeEntryOp(kind, "update", err)
	if err != nil {
		s.writeServiceErr(w, r, err, "update entry")
		return
	}
	toJSON(w, http.StatusOK, entryMutationResponse{Entry: toEntryResponse(e), Record: toRecordResponse(rec)})
}

// GET /v1/records/{date}/{kind}/by-category
func (s *Server) groupedByCategory(w http.ResponseWriter, r *http.Request) {
	groups, err := s.records.GroupedByCategory(r.Context(), userFrom(r.Context()).ID, kindParam(r), chi.URLParam(r, "date"))
	if err != nil {
		s.writeServiceErr(w, r, err, "group entries")
		return
	}
	out := listResponse[categoryGroupResponse]{Items: make([]categoryGroupResponse, 0, len(groups))}
	for _, g := range groups {
		out.Items = append(out.Items, toCategoryGroupResponse(g))
	}
	toJSON(w, http.StatusOK, out)
}
