package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

type EmailService struct {
	host        string
	port        string
	user        string
	pass        string
	from        string
	frontendURL string
	devMode     bool
}

func NewEmailService(host, port, user, pass, from, frontendURL string) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		log.Println("⚠ Email service running in DEV MODE (logging to console)")
	}
	return &EmailService{
		host:        host,
		port:        port,
		user:        user,
		pass:        pass,
		from:        from,
		frontendURL: frontendURL,
		devMode:     devMode,
	}
}

func (s *EmailService) SendEnrollmentEmail(to, sessionTitle string) error {
	subject := "You joined " + sessionTitle
	body := s.wrap("Enrollment confirmed",
		fmt.Sprintf("You are now enrolled in <strong>%s</strong>. Check the session page for upcoming live classes and materials.", sessionTitle),
		s.frontendURL+"/sessions", "Open session")
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendAssignmentDueEmail(to, sessionTitle, dueAt string) error {
	subject := "Assignment due soon: " + sessionTitle
	body := s.wrap("Assignment reminder",
		fmt.Sprintf("Your assignment for <strong>%s</strong> is due %s. Submit before the deadline to be graded.", sessionTitle, dueAt),
		s.frontendURL+"/sessions", "Go to assignment")
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendLiveStartingEmail(to, sessionTitle string) error {
	subject := "Live class starting: " + sessionTitle
	body := s.wrap("Your class is live",
		fmt.Sprintf("The live class for <strong>%s</strong> has started. Join now to keep your attendance.", sessionTitle),
		s.frontendURL+"/sessions", "Join class")
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) wrap(heading, paragraph, link, linkLabel string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 480px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: linear-gradient(135deg, #0ea5e9 0%%, #6366f1 100%%); padding: 32px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 700;">Aula</h1>
      <p style="color: rgba(255,255,255,0.85); margin: 8px 0 0; font-size: 14px;">Live Learning</p>
    </div>
    <div style="padding: 32px;">
      <h2 style="margin: 0 0 16px; font-size: 20px; color: #1e293b;">%s</h2>
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">%s</p>
      <a href="%s" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">%s</a>
    </div>
  </div>
</body>
</html>`, heading, paragraph, link, linkLabel)
}

func (s *EmailService) sendHTML(to, subject, htmlBody string) error {
	if s.devMode {
		log.Printf("📧 [DEV EMAIL] To: %s | Subject: %s", to, subject)
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}
