package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"kakeibo/internal/core"
)

// HTMXResponseBuilder assembles a fragment response and its HX-Trigger
// events.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerEntryCreated tells the page which month gained an entry.
func (b *HTMXResponseBuilder) TriggerEntryCreated(ym core.YearMonth) *HTMXResponseBuilder {
	return b.Trigger("entry:created", map[string]any{"ym": ym.Key()})
}

func (b *HTMXResponseBuilder) TriggerEntriesDeleted(count int) *HTMXResponseBuilder {
	return b.Trigger("entries:deleted", map[string]int{"count": count})
}

func (b *HTMXResponseBuilder) TriggerCategoriesChanged() *HTMXResponseBuilder {
	return b.Trigger("categories:changed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

// NoticeKind selects the styling of a notice fragment.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeWarning NoticeKind = "warning"
	NoticeError   NoticeKind = "error"
)

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets a trusted HTML body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Notice sets an escaped notice fragment as the body.
func (b *HTMXResponseBuilder) Notice(kind NoticeKind, message string) *HTMXResponseBuilder {
	return b.BodyHTML(`<div class="notice notice-` + string(kind) + `" role="status">` +
		template.HTMLEscapeString(message) + `</div>`)
}

func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if len(b.triggers) > 0 {
		if trig, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(trig))
		}
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates an escaped error notice with the given status.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().Status(statusCode).Notice(NoticeError, message)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
