package v1

import (
	"net/http"
	"strings"

	"github.com/tinoosan/cashbook/internal/dictionary"
	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
)

// GET /v1/dictionary/categories?kind=
func (s *Server) getCategoryDictionary(w http.ResponseWriter, r *http.Request) {
	var only *finance.Kind
	if ks := strings.ToLower(r.URL.Query().Get("kind")); ks != "" {
		k := finance.Kind(ks)
		if !k.Valid() {
			writeValidationErr(w, errs.ErrInvalidKind)
			return
		}
		only = &k
	}
	type kindItem struct {
		Kind       finance.Kind             `json:"kind"`
		Categories []dictionary.CategoryDef `json:"categories"`
	}
	out := listResponse[kindItem]{Items: []kindItem{}}
	for _, k := range finance.Kinds {
		if only != nil && *only != k {
			continue
		}
		out.Items = append(out.Items, kindItem{Kind: k, Categories: dictionary.CategoriesFor(&k)})
	}
	toJSON(w, http.StatusOK, out)
}
