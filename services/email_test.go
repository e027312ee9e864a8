package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmail_TestMode(t *testing.T) {
	mailer := NewResendMailer(&config.Config{EmailTestMode: true})
	email := &Email{
		To:       []string{"test@example.com"},
		Subject:  "Test",
		HTMLBody: "Body",
	}

	assert.NoError(t, mailer.Send(email))
}

func TestSendEmail_NoApiKey(t *testing.T) {
	mailer := NewResendMailer(&config.Config{EmailTestMode: false})
	email := &Email{
		To:       []string{"test@example.com"},
		Subject:  "Test",
		HTMLBody: "Body",
	}

	err := mailer.Send(email)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "RESEND_API_KEY not configured")
}

func TestSendEmail_NoBody(t *testing.T) {
	mailer := NewResendMailer(&config.Config{EmailTestMode: false, ResendAPIKey: "key"})
	email := &Email{
		To:      []string{"test@example.com"},
		Subject: "Test",
	}

	err := mailer.Send(email)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "email must have either HTMLBody or TextBody")
}

func TestTruncate(t *testing.T) {
	s := "Hello World"
	assert.Equal(t, "Hello", truncate(s, 5))
	assert.Equal(t, "Hello World", truncate(s, 20))
}

type captureMailer struct {
	mu   sync.Mutex
	sent []*Email
	err  error
	done chan struct{}
}

func (m *captureMailer) Send(email *Email) error {
	m.mu.Lock()
	m.sent = append(m.sent, email)
	m.mu.Unlock()
	close(m.done)
	return m.err
}

func TestSendEmailAsync(t *testing.T) {
	mailer := &captureMailer{done: make(chan struct{}), err: errors.New("smtp down")}
	email := &Email{To: []string{"a@example.com"}, Subject: "Hola", TextBody: "x"}

	SendEmailAsync(mailer, email)
	// The caller may reuse its email value right away
	email.To[0] = "b@example.com"

	select {
	case <-mailer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("email was not sent")
	}
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{"a@example.com"}, mailer.sent[0].To)

	// Nil values are ignored
	SendEmailAsync(nil, email)
	SendEmailAsync(mailer, nil)
}

func TestBuildConsultationReceiptEmail(t *testing.T) {
	db := setupServicesTestDB(t)

	t.Run("Natural person", func(t *testing.T) {
		c := createConsultation(t, db, naturalInput())

		email, err := BuildConsultationReceiptEmail(c)
		require.NoError(t, err)
		require.NotNil(t, email)
		assert.Equal(t, []string{"maria@example.com"}, email.To)
		assert.NotEmpty(t, email.Subject)
		assert.Contains(t, email.HTMLBody, "María López")
		assert.Contains(t, email.HTMLBody, c.ID)
		assert.Contains(t, email.TextBody, "Tegucigalpa, Distrito Central, Francisco Morazán")
		assert.Contains(t, email.TextBody, "Salud, Educación")
	})

	t.Run("Anonymous is not named", func(t *testing.T) {
		in := anonymousInput()
		in.Email = "anon@example.com"
		c := createConsultation(t, db, in)

		email, err := BuildConsultationReceiptEmail(c)
		require.NoError(t, err)
		require.NotNil(t, email)
		assert.Contains(t, email.TextBody, "ciudadano(a)")
		assert.Contains(t, email.TextBody, "Aldea Nueva")
	})

	t.Run("Markup in names is escaped", func(t *testing.T) {
		c := &models.Consultation{
			ID:         "x",
			PersonType: models.PersonNatural,
			FirstName:  "<b>Ana</b>",
			Email:      "ana@example.com",
		}
		email, err := BuildConsultationReceiptEmail(c)
		require.NoError(t, err)
		assert.NotContains(t, email.HTMLBody, "<b>Ana</b>")
		assert.Contains(t, email.HTMLBody, "&lt;b&gt;Ana&lt;/b&gt;")
	})

	t.Run("Without email nothing is built", func(t *testing.T) {
		c := createConsultation(t, db, anonymousInput())

		email, err := BuildConsultationReceiptEmail(c)
		assert.NoError(t, err)
		assert.Nil(t, email)
	})
}
