package service

import (
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// SMSService sends reminders through Twilio. The client is built once and
// injected wherever messages are sent.
type SMSService struct {
	client *twilio.RestClient
	from   string
}

func NewSMSService(accountSID, authToken, fromNumber string) (*SMSService, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, fmt.Errorf("twilio credentials (SID, token or from number) are not fully configured")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSID,
		Password:   authToken,
		AccountSid: accountSID,
	})
	return &SMSService{client: client, from: fromNumber}, nil
}

// Send delivers one message and returns the gateway's delivery receipt id.
// displayName is prefixed onto the body; the gateway has no sender-name
// field for plain SMS.
func (s *SMSService) Send(to, body, displayName string) (string, error) {
	if !strings.HasPrefix(to, "+") {
		log.Printf("WARNING: destination number '%s' is not E.164 (missing '+'), the SMS may fail", to)
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(fmt.Sprintf("%s: %s", displayName, body))

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		return *resp.Sid, nil
	}
	log.Printf("SMS sent to %s but no SID came back in the response", to)
	return "", nil
}
