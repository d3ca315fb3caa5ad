// Package services orchestrates ledger operations across the store, the
// broker and the settlement engine.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/storage/csvfile"
)

// Publisher announces ledger mutations to the export worker.
type Publisher interface {
	PublishEntrySync(ctx context.Context, e core.LedgerEntry) error
	PublishEntryDelete(ctx context.Context, uid string) error
}

// EntryInput is a parsed entry form before stamping.
type EntryInput struct {
	PaymentDate       core.Date
	AmountYen         int64
	Payer             core.Party
	Beneficiary       core.Party
	Category          string
	OtherCategoryNote string
	Memo              string
}

// MonthView bundles what the settlement page shows for one month.
type MonthView struct {
	Period     core.YearMonth
	Entries    []core.LedgerEntry
	Settlement core.Settlement
	Overview   core.MonthOverview
}

// LedgerService orchestrates ledger operations. The publisher and metrics
// are optional.
type LedgerService struct {
	store     ledger.Store
	publisher Publisher
	parties   core.Parties
	metrics   *metrics.Metrics
	views     cache.Cache[MonthView]
	logger    *log.StructuredLogger
	now       func() time.Time

	// viewMu orders cache writes against invalidation; gen counts mutations
	// so a view read before one is never stored after it.
	viewMu sync.Mutex
	gen    uint64
}

// Option customises a LedgerService.
type Option func(*LedgerService)

func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

// WithViewCache caches month views until the next mutation.
func WithViewCache(c cache.Cache[MonthView]) Option {
	return func(s *LedgerService) { s.views = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = log.NewStructuredLogger(l) }
}

func NewLedgerService(store ledger.Store, parties core.Parties, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:   store,
		parties: parties,
		now:     time.Now,
		logger:  log.NewStructuredLogger(log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *LedgerService) Parties() core.Parties { return s.parties }

// Now returns the service clock.
func (s *LedgerService) Now() time.Time { return s.now() }

// CreateEntry validates, stamps and stores a new entry, then announces it.
// A publish failure is logged and does not fail the call.
func (s *LedgerService) CreateEntry(ctx context.Context, in EntryInput) (core.LedgerEntry, string, error) {
	e := core.NewLedgerEntry(s.now(), in.PaymentDate, core.Money{Yen: in.AmountYen},
		in.Payer, in.Beneficiary, in.Category, in.OtherCategoryNote, in.Memo)
	if err := e.Validate(s.parties); err != nil {
		if s.metrics != nil {
			s.metrics.EntriesRejected.WithLabelValues(rejectReason(err)).Inc()
		}
		return core.LedgerEntry{}, "", err
	}

	ref, err := s.store.Append(ctx, e)
	if err != nil {
		return core.LedgerEntry{}, "", fmt.Errorf("save entry: %w", err)
	}
	s.invalidate()
	if s.metrics != nil {
		s.metrics.EntriesCreated.Inc()
	}
	s.logger.LogEntryCreated(ctx, e.ID, e.PaymentDate.String(), e.Amount.Yen,
		string(e.Payer), string(e.Beneficiary), e.Category, ref)

	if s.publisher != nil {
		if err := s.publisher.PublishEntrySync(ctx, e); err != nil {
			s.publishFailed(ctx, e.ID, err)
		}
	}
	return e, ref, nil
}

// DeleteEntries removes the entries at the given ledger positions.
func (s *LedgerService) DeleteEntries(ctx context.Context, indices []int) ([]core.LedgerEntry, error) {
	removed, err := s.store.Delete(ctx, indices)
	if err != nil {
		return nil, err
	}
	s.invalidate()
	if s.metrics != nil {
		s.metrics.EntriesDeleted.Add(float64(len(removed)))
	}
	slog.InfoContext(ctx, "Ledger entries deleted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpDelete,
		log.FieldCount, len(removed))

	if s.publisher != nil {
		for _, e := range removed {
			if err := s.publisher.PublishEntryDelete(ctx, e.ID); err != nil {
				s.publishFailed(ctx, e.ID, err)
			}
		}
	}
	return removed, nil
}

func (s *LedgerService) Entries(ctx context.Context) ([]core.LedgerEntry, error) {
	return s.store.Entries(ctx)
}

// EntriesForMonth returns the month's entries in ledger order.
func (s *LedgerService) EntriesForMonth(ctx context.Context, ym core.YearMonth) ([]core.LedgerEntry, error) {
	if err := ym.Validate(); err != nil {
		return nil, err
	}
	return s.store.EntriesForMonth(ctx, ym.Year, ym.Month)
}

// Settle computes the settlement of one month.
func (s *LedgerService) Settle(ctx context.Context, ym core.YearMonth) (core.Settlement, error) {
	v, err := s.MonthView(ctx, ym)
	if err != nil {
		return core.Settlement{}, err
	}
	return v.Settlement, nil
}

// Summary returns the per-category totals of one month.
func (s *LedgerService) Summary(ctx context.Context, ym core.YearMonth) (core.MonthOverview, error) {
	v, err := s.MonthView(ctx, ym)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return v.Overview, nil
}

// MonthView returns the entries, settlement and overview of one month.
func (s *LedgerService) MonthView(ctx context.Context, ym core.YearMonth) (MonthView, error) {
	var gen uint64
	if s.views != nil {
		if v, ok := s.views.Get(ym.Key()); ok {
			return v, nil
		}
		gen = s.generation()
	}
	entries, err := s.EntriesForMonth(ctx, ym)
	if err != nil {
		return MonthView{}, err
	}
	st := core.ComputeSettlement(entries, s.parties)
	v := MonthView{
		Period:     ym,
		Entries:    entries,
		Settlement: st,
		Overview:   core.Summarize(entries, ym.Year, ym.Month),
	}

	s.logger.LogSettlement(ctx, ym.Year, ym.Month, st.AOwesB, st.BOwesA, st.Direction().String())
	if s.metrics != nil {
		s.metrics.Settlements.WithLabelValues(st.Direction().String()).Inc()
		s.metrics.SettlementAmount.WithLabelValues("a_owes_b").Set(float64(st.AOwesB))
		s.metrics.SettlementAmount.WithLabelValues("b_owes_a").Set(float64(st.BOwesA))
	}
	if s.views != nil {
		s.viewMu.Lock()
		if s.gen == gen {
			s.views.Set(ym.Key(), v)
		}
		s.viewMu.Unlock()
	}
	return v, nil
}

func (s *LedgerService) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

func (s *LedgerService) AddCategory(ctx context.Context, name string) error {
	return s.store.AddCategory(ctx, name)
}

func (s *LedgerService) RemoveCategory(ctx context.Context, name string) error {
	return s.store.RemoveCategory(ctx, name)
}

// ExportCSV writes the whole ledger in the ledger file format.
func (s *LedgerService) ExportCSV(ctx context.Context, w io.Writer) error {
	entries, err := s.store.Entries(ctx)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	return csvfile.Write(w, entries)
}

// Ping checks the store when it supports health checks.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *LedgerService) invalidate() {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	s.gen++
	if s.views != nil {
		s.views.Purge()
	}
}

func (s *LedgerService) generation() uint64 {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.gen
}

func (s *LedgerService) publishFailed(ctx context.Context, uid string, err error) {
	if s.metrics != nil {
		s.metrics.PublishFailures.Inc()
	}
	slog.ErrorContext(ctx, "Failed to publish entry event",
		log.FieldComponent, log.ComponentAMQP,
		log.FieldEntryID, uid,
		log.FieldError, err)
}

// IsValidation reports whether err is a user input problem rather than a
// storage failure.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationErrors = []error{
	core.ErrInvalidDay, core.ErrInvalidMonth, core.ErrInvalidAmount, core.ErrZeroAmount,
	core.ErrEmptyCategory, core.ErrUnknownPayer, core.ErrUnknownBeneficiary,
	core.ErrOtherNoteWithoutOther, core.ErrMemoTooLong, core.ErrMissingDate,
	ledger.ErrIndexOutOfRange, ledger.ErrNoSelection,
	ledger.ErrCategoryExists, ledger.ErrCategoryMissing,
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, core.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, core.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, core.ErrUnknownPayer), errors.Is(err, core.ErrUnknownBeneficiary):
		return "unknown_party"
	case errors.Is(err, core.ErrOtherNoteWithoutOther):
		return "other_note"
	case errors.Is(err, core.ErrEmptyCategory):
		return "empty_category"
	default:
		return "other"
	}
}
