package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
	"github.com/tinoosan/cashbook/internal/service/record"
)

type ctxKey string

const (
	ctxKeyPostEntry         ctxKey = "validatedPostEntry"
	ctxKeyPatchEntry        ctxKey = "validatedPatchEntry"
	ctxKeyMatchEntry        ctxKey = "validatedMatchEntry"
	ctxKeyPostCategory      ctxKey = "validatedPostCategory"
	ctxKeyRenameCategory    ctxKey = "validatedRenameCategory"
	ctxKeyPutInitialBalance ctxKey = "validatedPutInitialBalance"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// postEntryInput is the validated POST /records/{date}/{kind} body.
type postEntryInput struct {
	Entry    record.NewEntry
	BodyHash string
}

// matchEntryInput is the validated POST /records/{date}/{kind}/entries/match body.
type matchEntryInput struct {
	Ref    finance.EntryRef
	Patch  finance.EntryPatch
	Delete bool
}

// readJSON enforces the JSON content type, decodes the body strictly into v
// and returns the raw bytes. It writes the error response itself.
func readJSON(w http.ResponseWriter, r *http.Request, v any) ([]byte, bool) {
	if !requireJSON(w, r) {
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		badRequest(w, "could not read body")
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return nil, false
	}
	return body, true
}

func writeValidationErr(w http.ResponseWriter, err error) {
	code, ok := validationCode(err)
	if !ok {
		code = "validation_error"
	}
	unprocessable(w, err.Error(), code)
}

// validatePostEntry checks amount and category and stores the parsed entry
// in the request context for the handler to use.
func (s *Server) validatePostEntry() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postEntryRequest
			body, ok := readJSON(w, r, &req)
			if !ok {
				return
			}
			amount, err := parseAmount(req.Amount)
			if err != nil {
				writeValidationErr(w, err)
				return
			}
			category := strings.TrimSpace(req.Category)
			if category == "" {
				writeValidationErr(w, errs.ErrEmptyCategory)
				return
			}
			in := postEntryInput{
				Entry:    record.NewEntry{Amount: amount, Category: category, Remark: finance.NormalizeRemark(req.Remark)},
				BodyHash: hashBytes(body),
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostEntry, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validatePatchEntry parses PATCH /records/{date}/{kind}/entries/{id}.
func (s *Server) validatePatchEntry() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req patchEntryRequest
			if _, ok := readJSON(w, r, &req); !ok {
				return
			}
			patch, err := req.toPatch()
			if err != nil {
				writeValidationErr(w, err)
				return
			}
			if patch.Empty() {
				badRequest(w, "nothing to update")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPatchEntry, patch)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateMatchEntry parses a value-matched update or delete.
func (s *Server) validateMatchEntry() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req matchEntryRequest
			if _, ok := readJSON(w, r, &req); !ok {
				return
			}
			ref, err := req.Match.toRef()
			if err != nil {
				writeValidationErr(w, err)
				return
			}
			in := matchEntryInput{Ref: ref, Delete: req.Delete}
			switch {
			case req.Delete && req.Patch != nil:
				badRequest(w, "use either patch or delete")
				return
			case !req.Delete && req.Patch == nil:
				badRequest(w, "patch or delete is required")
				return
			case req.Patch != nil:
				if in.Patch, err = req.Patch.toPatch(); err != nil {
					writeValidationErr(w, err)
					return
				}
				if in.Patch.Empty() {
					badRequest(w, "nothing to update")
					return
				}
			}
			ctx := context.WithValue(r.Context(), ctxKeyMatchEntry, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) validatePostCategory() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postCategoryRequest
			if _, ok := readJSON(w, r, &req); !ok {
				return
			}
			name := strings.TrimSpace(req.Name)
			if name == "" {
				writeValidationErr(w, errs.ErrEmptyCategory)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostCategory, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) validateRenameCategory() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req renameCategoryRequest
			if _, ok := readJSON(w, r, &req); !ok {
				return
			}
			name := strings.TrimSpace(req.Name)
			if name == "" {
				writeValidationErr(w, errs.ErrEmptyCategory)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyRenameCategory, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) validatePutInitialBalance() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req putInitialBalanceRequest
			if _, ok := readJSON(w, r, &req); !ok {
				return
			}
			amount, err := parseDecimal(req.InitialBalance)
			if err != nil {
				writeValidationErr(w, err)
				return
			}
			st := finance.Settings{InitialBalance: amount, Currency: strings.TrimSpace(req.Currency)}
			ctx := context.WithValue(r.Context(), ctxKeyPutInitialBalance, st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
