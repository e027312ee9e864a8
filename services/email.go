package services

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log"
	"strings"
	texttemplate "text/template"
	"time"

	"consulta_ciudadana_go/config"
	"consulta_ciudadana_go/models"

	"github.com/resend/resend-go/v2"
)

//go:embed emails/*.html emails/*.txt
var emailTemplates embed.FS

// Email represents an email message
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

// Mailer delivers emails
type Mailer interface {
	Send(email *Email) error
}

// ResendMailer sends through the Resend API, or logs to the console in test mode
type ResendMailer struct {
	cfg *config.Config
}

// NewResendMailer creates a mailer from configuration
func NewResendMailer(cfg *config.Config) *ResendMailer {
	return &ResendMailer{cfg: cfg}
}

// Send sends an email using Resend API
func (m *ResendMailer) Send(email *Email) error {
	// In development mode, log the email instead of sending
	if m.cfg.EmailTestMode {
		logEmailToConsole(email)
		return nil
	}

	if m.cfg.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY not configured")
	}

	client := resend.NewClient(m.cfg.ResendAPIKey)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", m.cfg.EmailFromName, m.cfg.EmailFrom),
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTMLBody,
		Text:    email.TextBody,
	}
	if params.Html == "" && params.Text == "" {
		return fmt.Errorf("email must have either HTMLBody or TextBody")
	}

	sent, err := client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}

	log.Printf("Email sent successfully via Resend (ID: %s) to: %v", sent.Id, email.To)
	return nil
}

// logEmailToConsole logs email details to console in development mode
func logEmailToConsole(email *Email) {
	separator := strings.Repeat("=", 80)
	log.Printf("\n%s\nEMAIL (Development Mode - Not Actually Sent)\n%s", separator, separator)
	log.Printf("To: %v", email.To)
	log.Printf("Subject: %s", email.Subject)
	log.Printf("\n--- TEXT BODY ---\n%s", email.TextBody)
	log.Printf("\n--- HTML BODY (first 500 chars) ---\n%s...", truncate(email.HTMLBody, 500))
	log.Printf("%s\n", separator)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// SendEmailAsync sends an email in a goroutine so handlers never wait on delivery
func SendEmailAsync(mailer Mailer, email *Email) {
	if mailer == nil || email == nil {
		return
	}
	emailCopy := &Email{
		To:       append([]string{}, email.To...),
		Subject:  email.Subject,
		HTMLBody: email.HTMLBody,
		TextBody: email.TextBody,
	}

	go func() {
		if err := mailer.Send(emailCopy); err != nil {
			log.Printf("[ERROR] Error sending async email: %v", err)
		}
	}()
}

// renderEmail executes emails/<name>.html and emails/<name>.txt with data
func renderEmail(name string, data interface{}) (string, string, error) {
	htmlTmpl, err := htmltemplate.ParseFS(emailTemplates, "emails/"+name+".html")
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s.html: %w", name, err)
	}
	textTmpl, err := texttemplate.ParseFS(emailTemplates, "emails/"+name+".txt")
	if err != nil {
		return "", "", fmt.Errorf("failed to parse template %s.txt: %w", name, err)
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s.html: %w", name, err)
	}
	if err := textTmpl.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template %s.txt: %w", name, err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}

// ConsultationReceiptData contains data for the acknowledgement email
type ConsultationReceiptData struct {
	Name           string
	ConsultationID string
	SubmittedAt    string
	Location       string
	Sectors        string
}

// BuildConsultationReceiptEmail creates the acknowledgement sent to a citizen
// who left an email address. It returns nil when there is nobody to notify.
func BuildConsultationReceiptEmail(c *models.Consultation) (*Email, error) {
	if c.Email == "" {
		return nil, nil
	}

	name := c.DisplayName()
	if c.PersonType == models.PersonAnonimo {
		name = "ciudadano(a)"
	}

	location := c.LocalityName()
	if c.Municipality != nil {
		location = strings.Trim(location+", "+c.Municipality.Name, ", ")
	}
	if c.Department != nil {
		location = strings.Trim(location+", "+c.Department.Name, ", ")
	}

	data := ConsultationReceiptData{
		Name:           name,
		ConsultationID: c.ID,
		SubmittedAt:    c.CreatedAt.UTC().Format(time.DateTime) + " UTC",
		Location:       location,
		Sectors:        strings.Join(c.SelectedSectors, ", "),
	}

	htmlBody, textBody, err := renderEmail("consultation_receipt", data)
	if err != nil {
		return nil, err
	}

	return &Email{
		To:       []string{c.Email},
		Subject:  "Hemos recibido su consulta",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}, nil
}
