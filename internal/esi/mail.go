package esi

import "fmt"

// MailRecipient addresses an EVE mail to a character, corporation, or alliance.
type MailRecipient struct {
	RecipientID   int64  `json:"recipient_id"`
	RecipientType string `json:"recipient_type"` // character | corporation | alliance
}

type mailPayload struct {
	ApprovedCost int64           `json:"approved_cost"`
	Body         string          `json:"body"`
	Recipients   []MailRecipient `json:"recipients"`
	Subject      string          `json:"subject"`
}

// SendMail sends an in-game mail from the given character. Corporation and
// alliance recipients incur a CSPA charge which is approved up front.
func (c *Client) SendMail(senderID int64, accessToken, subject, body string, recipients []MailRecipient) error {
	url := fmt.Sprintf("%s/characters/%d/mail/?datasource=tranquility", baseURL, senderID)
	payload := mailPayload{
		ApprovedCost: 10_000,
		Body:         body,
		Recipients:   recipients,
		Subject:      subject,
	}
	if err := c.AuthPostJSON(url, accessToken, payload, nil); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
