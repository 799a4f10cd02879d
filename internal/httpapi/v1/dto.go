package v1

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tinoosan/cashbook/internal/errs"
	"github.com/tinoosan/cashbook/internal/finance"
	"github.com/tinoosan/cashbook/internal/service/balance"
	"github.com/tinoosan/cashbook/internal/service/record"
)

// --- Requests ---

// Amounts are accepted as JSON numbers or numeric strings.
type postEntryRequest struct {
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Remark   *string         `json:"remark"`
}

type patchEntryRequest struct {
	Amount   json.RawMessage `json:"amount,omitempty"`
	Category *string         `json:"category,omitempty"`
	Remark   *string         `json:"remark,omitempty"`
}

type entryMatch struct {
	Amount    json.RawMessage `json:"amount"`
	Category  string          `json:"category"`
	Remark    *string         `json:"remark"`
	Timestamp int64           `json:"timestamp"`
}

// matchEntryRequest updates or deletes the first entry equal to Match.
type matchEntryRequest struct {
	Match  entryMatch         `json:"match"`
	Patch  *patchEntryRequest `json:"patch,omitempty"`
	Delete bool               `json:"delete,omitempty"`
}

type postCategoryRequest struct {
	Name string `json:"name"`
}

type renameCategoryRequest struct {
	Name string `json:"name"`
}

type putInitialBalanceRequest struct {
	InitialBalance json.RawMessage `json:"initial_balance"`
	Currency       string          `json:"currency,omitempty"`
}

// decimalText extracts the numeric text of a JSON number or string.
func decimalText(raw json.RawMessage) (string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return "", errs.ErrInvalidAmount
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return "", errs.ErrInvalidAmount
		}
		s = strings.TrimSpace(str)
	}
	return s, nil
}

// parseDecimal reads a JSON number or numeric string.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	s, err := decimalText(raw)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errs.ErrInvalidAmount
	}
	return d, nil
}

// parseAmount reads a positive amount.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	s, err := decimalText(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return finance.ParseAmount(s)
}

func (p patchEntryRequest) toPatch() (finance.EntryPatch, error) {
	var patch finance.EntryPatch
	if len(p.Amount) > 0 {
		d, err := parseAmount(p.Amount)
		if err != nil {
			return patch, err
		}
		patch.Amount = &d
	}
	patch.Category = p.Category
	patch.Remark = p.Remark
	return patch, nil
}

func (m entryMatch) toRef() (finance.EntryRef, error) {
	d, err := parseDecimal(m.Amount)
	if err != nil {
		return finance.EntryRef{}, err
	}
	return finance.EntryRef{
		Amount:    d,
		Category:  m.Category,
		Remark:    finance.NormalizeRemark(m.Remark),
		Timestamp: m.Timestamp,
	}, nil
}

// --- Responses ---

type entryResponse struct {
	ID        string `json:"id"`
	Amount    string `json:"amount"`
	Category  string `json:"category"`
	Remark    string `json:"remark"`
	Timestamp int64  `json:"timestamp"`
}

type recordResponse struct {
	Date         string          `json:"date"`
	Income       []entryResponse `json:"income"`
	Expense      []entryResponse `json:"expense"`
	TotalIncome  string          `json:"total_income"`
	TotalExpense string          `json:"total_expense"`
}

type entryMutationResponse struct {
	Entry  entryResponse  `json:"entry"`
	Record recordResponse `json:"record"`
}

type categoryResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type cascadeResponse struct {
	RecordsUpdated int `json:"records_updated"`
}

type categoryGroupResponse struct {
	Category string          `json:"category"`
	Total    string          `json:"total"`
	Entries  []entryResponse `json:"entries"`
}

type categoryLineResponse struct {
	Date      string `json:"date"`
	ID        string `json:"id"`
	Remark    string `json:"remark"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

type monthTotalsResponse struct {
	Month        string `json:"month"`
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
}

type dayTotalsResponse struct {
	Date         string `json:"date"`
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
}

type settingsResponse struct {
	InitialBalance string `json:"initial_balance"`
	Currency       string `json:"currency"`
}

type balanceResponse struct {
	InitialBalance string `json:"initial_balance"`
	TotalIncome    string `json:"total_income"`
	TotalExpense   string `json:"total_expense"`
	CurrentBalance string `json:"current_balance"`
	Currency       string `json:"currency"`
	Display        string `json:"display"`
}

type meResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	LastSignIn  *time.Time `json:"last_sign_in,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func toEntryResponse(e finance.Entry) entryResponse {
	return entryResponse{ID: e.ID.String(), Amount: e.Amount.String(), Category: e.Category, Remark: e.Remark, Timestamp: e.Timestamp}
}

func toEntryResponses(es []finance.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(es))
	for _, e := range es {
		out = append(out, toEntryResponse(e))
	}
	return out
}

func toRecordResponse(r finance.DailyRecord) recordResponse {
	return recordResponse{
		Date:         r.Date,
		Income:       toEntryResponses(r.Income),
		Expense:      toEntryResponses(r.Expense),
		TotalIncome:  r.TotalIncome.String(),
		TotalExpense: r.TotalExpense.String(),
	}
}

func toCategoryResponse(c finance.Category) categoryResponse {
	return categoryResponse{ID: c.ID.String(), Kind: string(c.Kind), Name: c.Name, CreatedAt: c.CreatedAt}
}

func toCategoryGroupResponse(g record.CategoryGroup) categoryGroupResponse {
	return categoryGroupResponse{Category: g.Name, Total: g.Total.String(), Entries: toEntryResponses(g.Entries)}
}

func toCategoryLineResponse(l record.CategoryLine) categoryLineResponse {
	return categoryLineResponse{
		Date:      l.Date,
		ID:        l.Entry.ID.String(),
		Remark:    l.Entry.Remark,
		Amount:    l.Entry.Amount.String(),
		Timestamp: l.Entry.Timestamp,
	}
}

func toSettingsResponse(st finance.Settings) settingsResponse {
	return settingsResponse{InitialBalance: st.InitialBalance.String(), Currency: st.Currency}
}

func toBalanceResponse(b balance.Balance) balanceResponse {
	return balanceResponse{
		InitialBalance: b.Initial.String(),
		TotalIncome:    b.TotalIncome.String(),
		TotalExpense:   b.TotalExpense.String(),
		CurrentBalance: b.Current.String(),
		Currency:       b.Currency,
		Display:        b.Amount.String(),
	}
}
