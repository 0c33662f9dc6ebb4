package site

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/healthassoc/bayan/pkg/content"
)

const maxContactForm = 64 << 10

type contactForm struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

type contactData struct {
	Form      contactForm
	Errors    content.ValidationErrors
	Reference string
}

func (s *Site) handleContactForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "contact", s.newView(r, s.msg(r, "nav.contact"), contactData{}))
}

// handleContactSubmit stores a submission and shows its reference. An
// invalid form is shown again with field messages.
func (s *Site) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxContactForm)

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return
	}

	form := contactForm{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Phone:   r.PostForm.Get("phone"),
		Subject: r.PostForm.Get("subject"),
		Message: r.PostForm.Get("message"),
	}

	sub := &content.Submission{
		Reference: uuid.NewString(),
		Locale:    s.requestLocale(r),
		Name:      form.Name,
		Email:     form.Email,
		Phone:     form.Phone,
		Subject:   form.Subject,
		Message:   form.Message,
	}

	sub.Normalize()

	title := s.msg(r, "nav.contact")

	if errs := sub.Validate(); len(errs) > 0 {
		s.render(w, r, http.StatusUnprocessableEntity, "contact",
			s.newView(r, title, contactData{Form: form, Errors: errs}))

		return
	}

	if err := s.store.Submissions().Create(r.Context(), sub); err != nil {
		s.log.WithError(err).Error("Failed to store contact submission")
		s.render(w, r, http.StatusInternalServerError, "error", s.newView(r, title, nil))

		return
	}

	s.log.WithField("reference", sub.Reference).Info("Contact submission received")

	s.render(w, r, http.StatusOK, "contact", s.newView(r, title, contactData{Reference: sub.Reference}))
}
