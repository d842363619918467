package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eve-metro/internal/auth"
	"eve-metro/internal/config"
	"eve-metro/internal/esi"
	"eve-metro/internal/logger"

	"github.com/go-telegram/bot"
)

// MailSender delivers an EVE mail on behalf of a character.
type MailSender interface {
	SendMail(senderID int64, accessToken, subject, body string, recipients []esi.MailRecipient) error
}

// TokenSource exchanges a refresh token for a fresh access token.
type TokenSource interface {
	RefreshToken(refreshToken string) (*auth.TokenResponse, error)
}

// Notifier sends subscription events to payers over EVE mail and mirrors them
// to an optional Telegram ops channel. Every send is best-effort: failures are
// logged and swallowed so a broken mail pipe never blocks reconciliation.
type Notifier struct {
	cfg    *config.Config
	mail   MailSender
	tokens TokenSource
	bot    *bot.Bot

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func New(cfg *config.Config, mail MailSender, tokens TokenSource) *Notifier {
	n := &Notifier{cfg: cfg, mail: mail, tokens: tokens}
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			logger.Warn("NOTIFY", fmt.Sprintf("telegram disabled: %v", err))
		} else {
			n.bot = b
		}
	}
	return n
}

func (n *Notifier) PaymentAccepted(payerID int64, amount float64, validUntil time.Time) {
	until := validUntil.Format("2006-01-02 15:04")
	n.sendMail(payerID, "EVE Metro subscription extended",
		fmt.Sprintf("Your payment of %.0f ISK has been received. Your EVE Metro access is valid until %s.", amount, until))
	n.ops(fmt.Sprintf("Payment accepted: %.0f ISK from %d, access until %s", amount, payerID, until))
}

func (n *Notifier) PaymentRejected(payerID int64, amount float64) {
	n.sendMail(payerID, "EVE Metro payment below subscription fee",
		fmt.Sprintf("Your donation of %.0f ISK is below the monthly fee of %.0f ISK and did not extend your access. Contact support for a refund.", amount, n.cfg.MonthlyFeeISK))
	n.ops(fmt.Sprintf("Payment rejected: %.0f ISK from %d (below fee)", amount, payerID))
}

func (n *Notifier) AccessExpired(entityID int64) {
	n.sendMail(entityID, "EVE Metro subscription expired",
		"Your EVE Metro subscription has run out. Send a new donation to the holding corporation to restore access.")
	n.ops(fmt.Sprintf("Access expired for entity %d", entityID))
}

func (n *Notifier) sendMail(characterID int64, subject, body string) {
	if n.mail == nil || n.cfg.MailCharacterID == 0 {
		return
	}
	token, err := n.mailToken()
	if err != nil {
		logger.Warn("NOTIFY", fmt.Sprintf("mail token: %v", err))
		return
	}
	recipients := []esi.MailRecipient{{RecipientID: characterID, RecipientType: "character"}}
	if err := n.mail.SendMail(n.cfg.MailCharacterID, token, subject, body, recipients); err != nil {
		logger.Warn("NOTIFY", fmt.Sprintf("mail to %d: %v", characterID, err))
		return
	}
	logger.Info("NOTIFY", fmt.Sprintf("mailed %d: %s", characterID, subject))
}

// mailToken returns a cached access token for the mail character, refreshing
// it shortly before expiry.
func (n *Notifier) mailToken() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.accessToken != "" && time.Now().Before(n.tokenExpiry) {
		return n.accessToken, nil
	}
	tok, err := n.tokens.RefreshToken(n.cfg.MailRefreshToken)
	if err != nil {
		return "", err
	}
	n.accessToken = tok.AccessToken
	n.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - 30*time.Second)
	return n.accessToken, nil
}

func (n *Notifier) ops(msg string) {
	if n.bot == nil || n.cfg.TelegramChatID == "" {
		return
	}
	_, err := n.bot.SendMessage(context.Background(), &bot.SendMessageParams{
		ChatID: n.cfg.TelegramChatID,
		Text:   msg,
	})
	if err != nil {
		logger.Warn("NOTIFY", fmt.Sprintf("telegram: %v", err))
	}
}
