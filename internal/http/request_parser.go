package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/services"
)

const maxBodyBytes = 64 << 10

// Form field names of the entry form.
const (
	fieldPaymentDate = "payment_date"
	fieldAmount      = "amount"
	fieldPayer       = "payer"
	fieldBeneficiary = "beneficiary"
	fieldCategory    = "category"
	fieldOtherNote   = "other_note"
	fieldMemo        = "memo"
	fieldIndex       = "idx"
	fieldName        = "name"
)

// RequestBodyParser reads a form-encoded or JSON body once. htmx posts forms;
// scripts may post JSON with the same field names.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	err      error
}

func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if p.err != nil {
		return p
	}
	trimmed := strings.TrimSpace(string(p.body))
	switch {
	case trimmed == "":
		p.formData = url.Values{}
	case strings.HasPrefix(trimmed, "{"):
		p.err = json.Unmarshal(p.body, &p.jsonData)
	default:
		p.formData, p.err = url.ParseQuery(trimmed)
	}
	return p
}

func (p *RequestBodyParser) Err() error { return p.err }

func (p *RequestBodyParser) IsJSON() bool { return p.jsonData != nil }

// Get returns the sanitized value of key.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		return sanitizeInput(stringValue(p.jsonData[key]))
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Values returns every value of key; JSON arrays are flattened.
func (p *RequestBodyParser) Values(key string) []string {
	if p.jsonData != nil {
		switch v := p.jsonData[key].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				out = append(out, stringValue(item))
			}
			return out
		case nil:
			return nil
		default:
			return []string{stringValue(v)}
		}
	}
	if p.formData != nil {
		return p.formData[key]
	}
	return nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

type valueGetter interface {
	Get(key string) string
}

// ParseEntryInput maps the entry form to a service input. Only the amount
// and the date are parsed here; every other rule is enforced by the service.
func ParseEntryInput(v valueGetter) (services.EntryInput, error) {
	get := func(key string) string { return sanitizeInput(v.Get(key)) }
	in := services.EntryInput{
		Payer:             core.Party(get(fieldPayer)),
		Beneficiary:       core.Party(get(fieldBeneficiary)),
		Category:          get(fieldCategory),
		OtherCategoryNote: get(fieldOtherNote),
		Memo:              get(fieldMemo),
	}
	if s := get(fieldPaymentDate); s != "" {
		d, err := core.ParseDate(s)
		if err != nil {
			return in, fmt.Errorf("payment date %q: %w", s, core.ErrInvalidDay)
		}
		in.PaymentDate = d
	}
	yen, err := core.ParseYen(get(fieldAmount))
	if err != nil {
		return in, err
	}
	in.AmountYen = yen
	return in, nil
}

// ParseIndices converts the selected row positions.
func ParseIndices(values []string) ([]int, error) {
	out := make([]int, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid row index %q", v)
		}
		out = append(out, i)
	}
	return out, nil
}

// ParseMonthParam reads ?ym=2025-03, defaulting to the month of now.
func ParseMonthParam(q url.Values, now time.Time) (core.YearMonth, error) {
	s := strings.TrimSpace(q.Get("ym"))
	if s == "" {
		return core.CurrentYearMonth(now), nil
	}
	return core.ParseYearMonth(s)
}
