package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net/smtp"
	"path/filepath"

	"github.com/artgrid/backend/internal/config"
	"github.com/artgrid/backend/internal/models"
)

type EmailService struct {
	cfg       *config.Config
	templates map[string]*template.Template
}

func NewEmailService(cfg *config.Config) *EmailService {
	service := &EmailService{
		cfg:       cfg,
		templates: make(map[string]*template.Template),
	}

	// Load email templates
	service.loadTemplates()

	return service
}

// loadTemplates loads all email templates
func (s *EmailService) loadTemplates() {
	templateFiles := []string{
		"registration_confirmation.html",
		"purchase_receipt.html",
		"asset_moderated.html",
	}

	for _, file := range templateFiles {
		path := filepath.Join("templates", file)
		tmpl, err := template.ParseFiles(path)
		if err != nil {
			fmt.Printf("Failed to load template %s: %v\n", file, err)
			continue
		}
		s.templates[file] = tmpl
	}
}

// SendRegistrationConfirmation sends a registration confirmation email
func (s *EmailService) SendRegistrationConfirmation(to, name, username string) error {
	data := map[string]interface{}{
		"Name":     name,
		"Username": username,
		"LoginURL": s.cfg.FrontendURL + "/login",
	}

	subject := "Welcome to ArtGrid!"
	return s.sendEmail(to, subject, "registration_confirmation.html", data)
}

// SendPurchaseReceipt sends a receipt email after a purchase was recorded
func (s *EmailService) SendPurchaseReceipt(to string, purchase *models.Purchase) error {
	data := map[string]interface{}{
		"AssetTitle":   purchase.Asset.Title,
		"Amount":       formatMinorUnits(purchase.Price),
		"Currency":     purchase.Payment.Currency,
		"PurchasesURL": s.cfg.FrontendURL + "/dashboard/purchases",
	}

	subject := fmt.Sprintf("Your ArtGrid receipt for %q", purchase.Asset.Title)
	return s.sendEmail(to, subject, "purchase_receipt.html", data)
}

// SendAssetModerated notifies the owner that an asset was approved or rejected
func (s *EmailService) SendAssetModerated(to string, asset *models.Asset) error {
	data := map[string]interface{}{
		"AssetTitle": asset.Title,
		"State":      string(asset.ApprovalState),
		"AssetsURL":  s.cfg.FrontendURL + "/dashboard/assets",
	}

	subject := fmt.Sprintf("Your asset %q was %s", asset.Title, asset.ApprovalState)
	return s.sendEmail(to, subject, "asset_moderated.html", data)
}

// sendEmail sends an email using the specified template
func (s *EmailService) sendEmail(to, subject, templateName string, data interface{}) error {
	// Get template
	tmpl, exists := s.templates[templateName]
	if !exists {
		return fmt.Errorf("template %s not found", templateName)
	}

	// Execute template
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	// Prepare email
	from := fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom)

	// Build email message
	message := fmt.Sprintf("From: %s\r\n", from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += "Content-Type: text/html; charset=\"UTF-8\"\r\n"
	message += "\r\n"
	message += body.String()

	// Send email
	return s.sendSMTP(to, []byte(message))
}

// sendSMTP sends an email via SMTP
func (s *EmailService) sendSMTP(to string, message []byte) error {
	// Setup authentication
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)

	// Connect to SMTP server
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	// For TLS connection (port 465)
	if s.cfg.SMTPPort == 465 {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.SMTPHost,
		}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
		if err != nil {
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
		defer client.Close()

		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}

		if err := client.Mail(s.cfg.SMTPFrom); err != nil {
			return err
		}
		if err := client.Rcpt(to); err != nil {
			return err
		}

		w, err := client.Data()
		if err != nil {
			return err
		}
		if _, err = w.Write(message); err != nil {
			return err
		}
		if err = w.Close(); err != nil {
			return err
		}

		return client.Quit()
	}

	// For STARTTLS connection (port 587)
	return smtp.SendMail(addr, auth, s.cfg.SMTPFrom, []string{to}, message)
}

// SendGenericTextEmail sends a plain text email with given subject and body
func (s *EmailService) SendGenericTextEmail(to, subject, body string) error {
	from := fmt.Sprintf("%s <%s>", s.cfg.SMTPFromName, s.cfg.SMTPFrom)
	message := fmt.Sprintf("From: %s\r\n", from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "Content-Type: text/plain; charset=\"UTF-8\"\r\n"
	message += "\r\n"
	message += body
	return s.sendSMTP(to, []byte(message))
}
