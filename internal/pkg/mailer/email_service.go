// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendEscalationAlert(operationType, entryId, errorSummary string, attempts int) error
}

type emailService struct {
	dialer        *gomail.Dialer
	senderEmail   string
	operatorEmail string
}

func NewEmailService(host string, port int, username, password, senderEmail, operatorEmail string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:        d,
		senderEmail:   senderEmail,
		operatorEmail: operatorEmail,
	}
}

func (s *emailService) SendEscalationAlert(operationType, entryId, errorSummary string, attempts int) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.senderEmail)
	m.SetHeader("To", s.operatorEmail)
	m.SetHeader("Subject", fmt.Sprintf("[Invoice Bot] Escalated operation: %s", operationType))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Operation needs manual attention</h2>
			<p>A background operation exhausted all automatic retries.</p>
			<table>
				<tr><td><b>Operation</b></td><td>%s</td></tr>
				<tr><td><b>Entry</b></td><td>%s</td></tr>
				<tr><td><b>Attempts</b></td><td>%d</td></tr>
				<tr><td><b>Last error</b></td><td>%s</td></tr>
			</table>
			<p>The entry is parked in the dead letter queue with status ESCALATED.</p>
		</div>
	`, operationType, entryId, attempts, errorSummary)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send escalation alert for %s: %v\n", entryId, err)
		return err
	}

	fmt.Printf("[MAILER] Escalation alert sent for entry %s\n", entryId)
	return nil
}
