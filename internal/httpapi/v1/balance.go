package v1

import (
	"net/http"

	"github.com/tinoosan/cashbook/internal/finance"
)

// GET /v1/balance
func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.balances.Current(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceErr(w, r, err, "compute balance")
		return
	}
	toJSON(w, http.StatusOK, toBalanceResponse(b))
}

// GET /v1/settings/initial-balance
func (s *Server) getInitialBalance(w http.ResponseWriter, r *http.Request) {
	st, err := s.balances.Initial(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceErr(w, r, err, "load initial balance")
		return
	}
	toJSON(w, http.StatusOK, toSettingsResponse(st))
}

// PUT /v1/settings/initial-balance
func (s *Server) putInitialBalance(w http.ResponseWriter, r *http.Request) {
	in, _ := r.Context().Value(ctxKeyPutInitialBalance).(finance.Settings)
	st, err := s.balances.SetInitial(r.Context(), userFrom(r.Context()).ID, in.InitialBalance, in.Currency)
	if err != nil {
		s.writeServiceErr(w, r, err, "save initial balance")
		return
	}
	toJSON(w, http.StatusOK, toSettingsResponse(st))
}
