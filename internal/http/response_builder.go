package http

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"
)

// Client-side events announced through HX-Trigger.
const (
	eventSectionSaved    = "section:saved"
	eventSectionReset    = "section:reset"
	eventNetWorthChanged = "networth:changed"
	eventNotification    = "show-notification"
)

// NotificationType selects the styling of a transient notice.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// notice is the payload of a show-notification event.
type notice struct {
	Type     NotificationType `json:"type"`
	Message  string           `json:"message"`
	Duration int64            `json:"duration"`
}

type sectionEvent struct {
	Index int `json:"index"`
}

// HTMXResponseBuilder assembles a UI response: status, headers, an HTML body
// and the events the page should react to.
type HTMXResponseBuilder struct {
	status  int
	header  http.Header
	events  map[string]any
	content string
}

// NewHTMXResponse starts a 200 response with no events.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		status: http.StatusOK,
		header: make(http.Header),
		events: make(map[string]any),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.status = code
	return b
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.header.Set(name, value)
	return b
}

// Trigger registers an event; a later call with the same name replaces the
// payload.
func (b *HTMXResponseBuilder) Trigger(name string, payload any) *HTMXResponseBuilder {
	b.events[name] = payload
	return b
}

func (b *HTMXResponseBuilder) TriggerSectionSaved(index int) *HTMXResponseBuilder {
	return b.Trigger(eventSectionSaved, sectionEvent{Index: index})
}

func (b *HTMXResponseBuilder) TriggerSectionReset(index int) *HTMXResponseBuilder {
	return b.Trigger(eventSectionReset, sectionEvent{Index: index})
}

func (b *HTMXResponseBuilder) TriggerNetWorthChanged() *HTMXResponseBuilder {
	return b.Trigger(eventNetWorthChanged, struct{}{})
}

// TriggerNotification shows message for d on the page.
func (b *HTMXResponseBuilder) TriggerNotification(kind NotificationType, message string, d time.Duration) *HTMXResponseBuilder {
	return b.Trigger(eventNotification, notice{Type: kind, Message: message, Duration: d.Milliseconds()})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3*time.Second)
}

// TriggerErrorNotification stays up longer than a success notice.
func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5*time.Second)
}

// BodyHTML sets an already rendered HTML body.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.header.Set("Content-Type", "text/html; charset=utf-8")
	b.content = html
	return b
}

// Write sends the response. Events that fail to encode are dropped rather
// than failing the response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, values := range b.header {
		for _, v := range values {
			w.Header().Set(name, v)
		}
	}
	if len(b.events) > 0 {
		if encoded, err := json.Marshal(b.events); err == nil {
			w.Header().Set("HX-Trigger", string(encoded))
		}
	}
	w.WriteHeader(b.status)
	if b.content != "" {
		_, _ = w.Write([]byte(b.content))
	}
}

// ErrorResponse renders message, escaped, in an error box.
func ErrorResponse(status int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(status).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}
