package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
)

type entryRow struct {
	Index       int
	PaymentDate string
	Amount      int64
	Payer       string
	Beneficiary string
	Category    string
	OtherNote   string
	Memo        string
	Created     string
}

// entryTable feeds the entries_table partial. Selectable adds the idx
// checkboxes, which are only meaningful when Index is a full-ledger position.
type entryTable struct {
	Rows       []entryRow
	Total      int64
	Selectable bool
}

func newEntryTable(entries []core.LedgerEntry, selectable bool) entryTable {
	t := entryTable{Rows: make([]entryRow, 0, len(entries)), Selectable: selectable}
	for i, e := range entries {
		t.Rows = append(t.Rows, entryRow{
			Index:       i,
			PaymentDate: e.PaymentDate.String(),
			Amount:      e.Amount.Yen,
			Payer:       string(e.Payer),
			Beneficiary: string(e.Beneficiary),
			Category:    e.Category,
			OtherNote:   e.OtherCategoryNote,
			Memo:        e.Memo,
			Created:     e.CreatedDate + " " + e.CreatedTime,
		})
		t.Total += e.Amount.Yen
	}
	return t
}

type monthOption struct {
	Key      string
	Label    string
	Selected bool
}

func monthOptions(now time.Time, selected core.YearMonth) []monthOption {
	opts := core.MonthOptions(now)
	if !selected.IsSelectable(now) {
		opts = append([]core.YearMonth{selected}, opts...)
	}
	out := make([]monthOption, 0, len(opts))
	for _, ym := range opts {
		out = append(out, monthOption{Key: ym.Key(), Label: ym.Label(), Selected: ym == selected})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks the templates and the ledger store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.svc.Ping(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
		"rejected":       s.limiter.Hits(),
	}
	checks["requests"] = map[string]any{
		"total":      s.tracer.TotalRequests(),
		"suspicious": s.detector.SuspiciousRequests(),
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries, err := s.svc.Entries(ctx)
	if err != nil {
		s.fail(w, r, "Failed to read ledger", err, log.OpList)
		return
	}
	cats, err := s.svc.Categories(ctx)
	if err != nil {
		s.fail(w, r, "Failed to read categories", err, log.OpList)
		return
	}
	p := s.svc.Parties()
	s.render(w, r, "index.html", struct {
		Today         string
		Payers        []core.Party
		Beneficiaries []core.Party
		Categories    []string
		OtherCategory string
		Table         entryTable
	}{
		Today:         s.svc.Now().Format(core.PaymentDateLayout),
		Payers:        p.PayerOptions(),
		Beneficiaries: p.BeneficiaryOptions(),
		Categories:    cats,
		OtherCategory: core.OtherCategory,
		Table:         newEntryTable(entries, true),
	})
}

// handleEntriesTable renders the ledger table partial.
func (s *Server) handleEntriesTable(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Entries(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to read ledger", err, log.OpList)
		return
	}
	s.render(w, r, "entries_table", newEntryTable(entries, true))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		BadRequestError("リクエストの形式が正しくありません").Write(w)
		return
	}
	in, err := ParseEntryInput(p)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpCreate)
		return
	}
	e, _, err := s.svc.CreateEntry(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpCreate)
		return
	}

	msg := fmt.Sprintf("登録しました: %s %s (%s → %s / %s)",
		e.PaymentDate, e.Amount, e.Payer, e.Beneficiary, e.Category)
	NewHTMXResponse().
		TriggerEntryCreated(core.CurrentYearMonth(e.PaymentDate.Time)).
		TriggerFormReset().
		Notice(NoticeSuccess, msg).
		Write(w)
}

func (s *Server) handleDeleteEntries(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		BadRequestError("リクエストの形式が正しくありません").Write(w)
		return
	}
	indices, err := ParseIndices(p.Values(fieldIndex))
	if err != nil {
		BadRequestError("⚠️ 選択された行が正しくありません").Write(w)
		return
	}
	removed, err := s.svc.DeleteEntries(r.Context(), indices)
	if errors.Is(err, ledger.ErrNoSelection) {
		NewHTMXResponse().Notice(NoticeWarning, userMessage(err)).Write(w)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err, log.OpDelete)
		return
	}
	NewHTMXResponse().
		TriggerEntriesDeleted(len(removed)).
		Notice(NoticeSuccess, fmt.Sprintf("%d件削除しました", len(removed))).
		Write(w)
}

// handleExportCSV downloads the whole ledger in the ledger file format.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportCSV(r.Context(), &buf); err != nil {
		s.fail(w, r, "Failed to export ledger", err, log.OpExport)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="kakeibo_data.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	now := s.svc.Now()
	ym, err := ParseMonthParam(r.URL.Query(), now)
	if err != nil {
		BadRequestError(userMessage(err)).Write(w)
		return
	}
	v, err := s.svc.MonthView(r.Context(), ym)
	if err != nil {
		s.fail(w, r, "Failed to compute settlement", err, log.OpSettle)
		return
	}
	st := v.Settlement
	s.render(w, r, "settlement.html", struct {
		Options   []monthOption
		Period    string
		PartyA    core.Party
		PartyB    core.Party
		Shared    core.Party
		AOwesB    int64
		BOwesA    int64
		Summary   string
		Breakdown core.Breakdown
		Overview  core.MonthOverview
		Show      bool
		Table     entryTable
	}{
		Options:   monthOptions(now, ym),
		Period:    ym.Label(),
		PartyA:    st.Parties.A,
		PartyB:    st.Parties.B,
		Shared:    st.Parties.Shared,
		AOwesB:    st.AOwesB,
		BOwesA:    st.BOwesA,
		Summary:   st.Summary(),
		Breakdown: st.Breakdown,
		Overview:  v.Overview,
		Show:      r.URL.Query().Get("show") == "1",
		Table:     newEntryTable(v.Entries, false),
	})
}

type categoryList struct {
	Categories    []string
	OtherCategory string
}

func (s *Server) categoryList(ctx context.Context) (categoryList, error) {
	cats, err := s.svc.Categories(ctx)
	return categoryList{Categories: cats, OtherCategory: core.OtherCategory}, err
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	data, err := s.categoryList(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to read categories", err, log.OpList)
		return
	}
	s.render(w, r, "categories.html", data)
}

func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	data, err := s.categoryList(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to read categories", err, log.OpList)
		return
	}
	s.render(w, r, "category_list", data)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	s.mutateCategory(w, r, s.svc.AddCategory, "カテゴリ「%s」を追加しました")
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	s.mutateCategory(w, r, s.svc.RemoveCategory, "カテゴリ「%s」を削除しました")
}

func (s *Server) mutateCategory(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error, done string) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		BadRequestError("リクエストの形式が正しくありません").Write(w)
		return
	}
	name := p.Get(fieldName)
	if name == "" {
		UnprocessableEntityError("⚠️ カテゴリ名を入力してください").Write(w)
		return
	}
	if err := op(r.Context(), name); err != nil {
		s.writeServiceError(w, r, err, log.OpCreate)
		return
	}
	NewHTMXResponse().
		TriggerCategoriesChanged().
		Notice(NoticeSuccess, fmt.Sprintf(done, name)).
		Write(w)
}

// writeServiceError answers 422 for user mistakes and 500 otherwise.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if services.IsValidation(err) {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeValidation)
		UnprocessableEntityError(userMessage(err)).Write(w)
		return
	}
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger operation failed",
		log.FieldOperation, op,
		log.FieldError, err,
		log.FieldErrorType, log.ErrorTypeStorage)
	InternalServerError("保存に失敗しました。もう一度お試しください").Write(w)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), msg,
		log.FieldOperation, op,
		log.FieldError, err,
		log.FieldErrorType, log.ErrorTypeStorage)
	InternalServerError("データの読み込みに失敗しました").Write(w)
}

// render executes a template into a buffer so failures can still produce a
// clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
