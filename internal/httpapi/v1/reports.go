package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
)

// GET /v1/reports/monthly
func (s *Server) monthlySummary(w http.ResponseWriter, r *http.Request) {
	months, err := s.records.MonthlySummary(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceErr(w, r, err, "summarise months")
		return
	}
	out := listResponse[monthTotalsResponse]{Items: make([]monthTotalsResponse, 0, len(months))}
	for _, m := range months {
		out.Items = append(out.Items, monthTotalsResponse{Month: m.Month, TotalIncome: m.TotalIncome.String(), TotalExpense: m.TotalExpense.String()})
	}
	toJSON(w, http.StatusOK, out)
}

// GET /v1/reports/monthly/{month}
// One row per recorded day; 404 when the month has no records.
func (s *Server) monthDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.records.MonthDays(r.Context(), userFrom(r.Context()).ID, chi.URLParam(r, "month"))
	if err != nil {
		s.writeServiceErr(w, r, err, "build month report")
		return
	}
	out := listResponse[dayTotalsResponse]{Items: make([]dayTotalsResponse, 0, len(days))}
	for _, d := range days {
		out.Items = append(out.Items, dayTotalsResponse{Date: d.Date, TotalIncome: d.TotalIncome.String(), TotalExpense: d.TotalExpense.String()})
	}
	toJSON(w, http.StatusOK, out)
}
