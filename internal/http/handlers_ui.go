package http

import (
	"bytes"
	"errors"
	"net/http"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"
	"networth/internal/session"
)

// HeaderSectionPartial marks a response carrying a section partial, which the
// client swaps in even when the status is not 2xx.
const HeaderSectionPartial = "X-Section-Partial"

type (
	sectionView struct {
		Index   int
		Section core.Section
		Editing bool
		Warning string
	}

	summaryView struct {
		Assets      string
		Liabilities string
		NetWorth    string
		Negative    bool
		OOB         bool
	}

	pageView struct {
		Sections []sectionView
		Summary  summaryView
		Notice   string
	}
)

func (s *Server) summaryView(oob bool) summaryView {
	sum := s.session.NetWorth()
	return summaryView{
		Assets:      formatAmount(sum.Assets, s.currency),
		Liabilities: formatAmount(sum.Liabilities, s.currency),
		NetWorth:    formatAmount(sum.NetWorth, s.currency),
		Negative:    sum.NetWorth.IsNegative(),
		OOB:         oob,
	}
}

// handleIndex reloads the session from the store and renders the full page.
// Unsaved edits from a previous page load are discarded.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	view := pageView{}
	all, err := s.session.LoadAll(r.Context())
	switch {
	case err == nil:
	case sections.IsNoData(err):
		view.Notice = "No data has been saved yet."
	default:
		view.Notice = "Could not load your data. Try again later."
		status = http.StatusInternalServerError
	}
	for i, sec := range all {
		view.Sections = append(view.Sections, sectionView{
			Index:   i,
			Section: sec,
			Editing: s.session.Mode(i) == session.Editing,
		})
	}
	view.Summary = s.summaryView(false)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", view); err != nil {
		logger.ErrorContext(r.Context(), "Index template execution failed", applog.FieldError, err, "template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().Status(status).BodyHTML(buf.String()).Write(w)
}

// renderSection writes the section partial followed by the out-of-band net
// worth block.
func (s *Server) renderSection(w http.ResponseWriter, r *http.Request, si, status int, warning string, b *HTMXResponseBuilder) {
	if b == nil {
		b = NewHTMXResponse()
	}
	sec, err := s.session.Section(si)
	if err != nil {
		NotFoundError("Section not found").Write(w)
		return
	}
	if s.templates == nil {
		InternalServerError("Templates not loaded").Write(w)
		return
	}

	view := sectionView{
		Index:   si,
		Section: sec,
		Editing: s.session.Mode(si) == session.Editing,
		Warning: warning,
	}
	var buf bytes.Buffer
	err = s.templates.ExecuteTemplate(&buf, "section", view)
	if err == nil {
		err = s.templates.ExecuteTemplate(&buf, "networth", s.summaryView(true))
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Section template execution failed",
			applog.FieldError, err,
			applog.FieldSectionIndex, si,
			applog.FieldComponent, applog.ComponentTemplate)
		InternalServerError("Rendering failed").Write(w)
		return
	}
	b.Status(status).Header(HeaderSectionPartial, "true").BodyHTML(buf.String()).Write(w)
}

// failUI answers a failed UI operation. Validation rejections and storage
// failures re-render the section with a warning; bad positions are reported
// without replacing anything on the page.
func (s *Server) failUI(w http.ResponseWriter, r *http.Request, si int, op, storageWarning string, err error) {
	logger := applog.FromContext(r.Context())
	status := statusForError(err)
	switch {
	case errors.Is(err, core.ErrValidationRejected):
		s.renderSection(w, r, si, status, rejectionMessage(err), nil)
	case errors.Is(err, errMalformedRequest):
		logger.WarnContext(r.Context(), "Malformed UI request", applog.FieldOperation, op, applog.FieldError, err)
		BadRequestError("Invalid request").Write(w)
	case errors.Is(err, session.ErrIndexOutOfRange):
		logger.WarnContext(r.Context(), "UI request for missing position", applog.FieldOperation, op, applog.FieldError, err)
		ErrorResponse(http.StatusNotFound, "Not found").
			TriggerErrorNotification("That item no longer exists. Reload the page.").
			Write(w)
	default:
		logger.ErrorContext(r.Context(), "UI storage operation failed",
			applog.FieldOperation, op,
			applog.FieldSectionIndex, si,
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeStorage)
		s.renderSection(w, r, si, status, storageWarning,
			NewHTMXResponse().TriggerErrorNotification(storageWarning))
	}
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrEmptyName):
		return "Name cannot be empty."
	case errors.Is(err, core.ErrDuplicateName):
		return "That name is already used here."
	default:
		return "Change rejected."
	}
}

// formValue parses the request body and returns the sanitized field.
func formValue(r *http.Request, key string) (string, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return "", err
	}
	return p.Get(key), nil
}

func (s *Server) handleSectionPartial(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si")
	if err != nil {
		s.failUI(w, r, -1, applog.OpRender, "", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "", nil)
}

func (s *Server) handleSetValue(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si", "gi", "ci")
	if err == nil {
		var raw string
		if raw, err = formValue(r, "value"); err == nil {
			_, err = s.session.SetCategoryValue(idx[0], idx[1], idx[2], raw)
		}
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpUpdate, "", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "", NewHTMXResponse().TriggerNetWorthChanged())
}

func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si")
	if err == nil {
		var name string
		if name, err = formValue(r, "name"); err == nil {
			_, err = s.session.AddGroup(r.Context(), idx[0], name)
		}
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpCreate, "", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "", nil)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si", "gi")
	if err == nil {
		var name string
		if name, err = formValue(r, "name"); err == nil {
			_, err = s.session.AddCategory(r.Context(), idx[0], idx[1], name)
		}
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpCreate, "", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "", nil)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si", "gi")
	if err == nil {
		_, err = s.session.DeleteGroup(idx[0], idx[1])
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpDelete, "", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "", NewHTMXResponse().TriggerNetWorthChanged())
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si", "gi", "ci")
	if err == nil {
		_, err = s.session.DeleteCategory(idx[0], idx[1], idx[2])
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpDelete, "", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "", NewHTMXResponse().TriggerNetWorthChanged())
}

func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si")
	if err == nil {
		err = s.session.BeginEdit(idx[0])
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpUpdate, "", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "", nil)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si")
	if err == nil {
		err = s.session.CancelEdit(r.Context(), idx[0])
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpReload, "Could not reload this section. Your edits are still here.", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "",
		NewHTMXResponse().TriggerSectionReset(idx[0]).TriggerNetWorthChanged())
}

func (s *Server) handleSubmitEdit(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si")
	if err == nil {
		err = s.session.SubmitEdit(r.Context(), idx[0])
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpSave, "Saving failed. Your edits are still here.", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "",
		NewHTMXResponse().TriggerSectionSaved(idx[0]).TriggerSuccessNotification("Section saved"))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si")
	if err == nil {
		err = s.session.SaveSection(r.Context(), idx[0])
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpSave, "Saving failed. Your edits are still here.", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "",
		NewHTMXResponse().TriggerSectionSaved(idx[0]).TriggerSuccessNotification("Section saved"))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	idx, err := PathIndexes(r, "si")
	if err == nil {
		_, err = s.session.ResetSection(r.Context(), idx[0])
	}
	if err != nil {
		s.failUI(w, r, sectionIndex(idx), applog.OpReload, "Could not reload this section.", err)
		return
	}
	s.renderSection(w, r, idx[0], http.StatusOK, "",
		NewHTMXResponse().TriggerSectionReset(idx[0]).TriggerNetWorthChanged())
}

// sectionIndex returns the parsed section position, or -1 when parsing failed.
func sectionIndex(idx []int) int {
	if len(idx) == 0 {
		return -1
	}
	return idx[0]
}
