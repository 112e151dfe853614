package service

import (
	"fmt"
	"log"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SenderService sends booking confirmation emails through SendGrid.
// Confirmation email is best-effort; failures are logged by the task queue
// that runs the send.
type SenderService struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func NewSenderService(apiKey, fromEmail, fromName string) (*SenderService, error) {
	if apiKey == "" || fromEmail == "" {
		return nil, fmt.Errorf("sendgrid API key or from email is not configured")
	}
	if fromName == "" {
		fromName = "Virtual Consultations"
	}
	return &SenderService{apiKey: apiKey, fromEmail: fromEmail, fromName: fromName}, nil
}

func (s *SenderService) SendBookingConfirmation(toEmail, toName string, jobID int64, serviceName string, start time.Time) error {
	subject := fmt.Sprintf("Your %s is confirmed", serviceName)
	plainBody := fmt.Sprintf(
		"Hello %s,\n\nYour %s is confirmed.\n\n"+
			"Booking reference: %d\n"+
			"Starts: %s\n\n"+
			"You will receive a text message with your join link shortly before the appointment.\n\n"+
			"Thank you for booking with us.",
		toName, serviceName, jobID, start.Format("02 Jan 2006 15:04 MST"),
	)

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainBody, "")

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send confirmation email to %s: %w", toEmail, err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		log.Printf("confirmation email sent to %s for booking %d (status %d)", toEmail, jobID, response.StatusCode)
		return nil
	}
	return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
}
