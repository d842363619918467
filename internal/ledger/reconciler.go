package ledger

import (
	"fmt"
	"time"

	"eve-metro/internal/auth"
	"eve-metro/internal/config"
	"eve-metro/internal/db"
	"eve-metro/internal/esi"
	"eve-metro/internal/logger"
)

// JournalSource pages through a corporation wallet division journal.
type JournalSource interface {
	GetCorpJournal(corporationID int64, division int, accessToken string) ([]esi.JournalEntry, error)
}

// TokenSource exchanges a refresh token for a fresh access token.
type TokenSource interface {
	RefreshToken(refreshToken string) (*auth.TokenResponse, error)
}

// Notifier receives subscription events. All notifications are best-effort:
// implementations log failures and never return them.
type Notifier interface {
	PaymentAccepted(payerID int64, amount float64, validUntil time.Time)
	PaymentRejected(payerID int64, amount float64)
	AccessExpired(entityID int64)
}

// Reconciler turns corporation wallet journals into time-bounded access
// grants. Every journal row is recorded exactly once in the payments log;
// only rows the log has never seen drive grant changes, so re-reading a
// journal page is always safe.
type Reconciler struct {
	cfg     *config.Config
	store   *db.DB
	sealer  *auth.Sealer
	tokens  TokenSource
	journal JournalSource
	notify  Notifier
}

func NewReconciler(cfg *config.Config, store *db.DB, sealer *auth.Sealer, tokens TokenSource, journal JournalSource, notify Notifier) *Reconciler {
	return &Reconciler{cfg: cfg, store: store, sealer: sealer, tokens: tokens, journal: journal, notify: notify}
}

// Run reconciles every registered wallet watcher. A watcher failure is
// recorded in that watcher's status string and never stops the others.
func (r *Reconciler) Run(now time.Time) {
	watchers, err := r.store.ListWatchers()
	if err != nil {
		logger.Error("LEDGER", fmt.Sprintf("list watchers: %v", err))
		return
	}
	for _, w := range watchers {
		processed, err := r.reconcileWatcher(&w, now)
		status := fmt.Sprintf("OK %s: %d payments processed", now.UTC().Format(time.RFC3339), processed)
		if err != nil {
			status = fmt.Sprintf("ERROR %s: %v", now.UTC().Format(time.RFC3339), err)
			logger.Error("LEDGER", fmt.Sprintf("watcher %d: %v", w.CharacterID, err))
		}
		if serr := r.store.SetWatcherStatus(w.CharacterID, status); serr != nil {
			logger.Error("LEDGER", fmt.Sprintf("watcher %d status: %v", w.CharacterID, serr))
		}
	}
}

func (r *Reconciler) reconcileWatcher(w *db.WalletWatcher, now time.Time) (int, error) {
	refreshToken, err := r.sealer.Open(w.Credential)
	if err != nil {
		return 0, fmt.Errorf("unseal credential: %w", err)
	}
	tok, err := r.tokens.RefreshToken(refreshToken)
	if err != nil {
		return 0, fmt.Errorf("refresh token: %w", err)
	}
	// SSO rotates refresh tokens: persist the new one before anything that
	// can fail, or the watcher is locked out on the next run.
	if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
		sealed, err := r.sealer.Seal(tok.RefreshToken)
		if err != nil {
			return 0, fmt.Errorf("seal credential: %w", err)
		}
		if err := r.store.SetWatcherCredential(w.CharacterID, sealed); err != nil {
			return 0, fmt.Errorf("store credential: %w", err)
		}
	}

	entries, err := r.journal.GetCorpJournal(w.CorporationID, w.Division, tok.AccessToken)
	if err != nil {
		return 0, fmt.Errorf("wallet journal: %w", err)
	}
	return r.processEntries(entries, now)
}

// processEntries records journal rows in the payments log and applies grant
// changes for the rows that were actually new.
func (r *Reconciler) processEntries(entries []esi.JournalEntry, now time.Time) (int, error) {
	byID := make(map[int64]*esi.JournalEntry, len(entries))
	rows := make([]db.PaymentsLogEntry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.ID == 0 || e.FirstPartyID == 0 {
			logger.Warn("LEDGER", fmt.Sprintf("skipping journal row with missing ids: %s", e.Raw()))
			continue
		}
		date, err := time.Parse(time.RFC3339, e.Date)
		if err != nil {
			logger.Warn("LEDGER", fmt.Sprintf("skipping journal row %d with bad date %q", e.ID, e.Date))
			continue
		}
		byID[e.ID] = e
		rows = append(rows, db.PaymentsLogEntry{
			ExternalID: e.ID,
			PayerID:    e.FirstPartyID,
			ReceiverID: e.SecondPartyID,
			Amount:     e.Amount,
			Date:       date,
			Raw:        e.Raw(),
		})
	}

	fresh, err := r.store.InsertPayments(rows)
	if err != nil {
		return 0, fmt.Errorf("insert payments: %w", err)
	}

	processed := 0
	for _, row := range fresh {
		entry := byID[row.ExternalID]
		if entry.RefType != r.cfg.DonationRefType || entry.Amount < r.cfg.MonthlyFeeISK {
			logger.Info("LEDGER", fmt.Sprintf("payment %d from %d does not qualify (%s, %.0f ISK)",
				row.ExternalID, row.PayerID, entry.RefType, entry.Amount))
			if r.notify != nil && entry.RefType == r.cfg.DonationRefType {
				r.notify.PaymentRejected(row.PayerID, entry.Amount)
			}
			continue
		}
		validUntil, err := r.applyPayment(row.PayerID, entry.Amount, now)
		if err != nil {
			logger.Error("LEDGER", fmt.Sprintf("payment %d from %d: %v", row.ExternalID, row.PayerID, err))
			continue
		}
		if err := r.store.MarkPaymentProcessed(row.ExternalID, now); err != nil {
			return processed, fmt.Errorf("mark processed %d: %w", row.ExternalID, err)
		}
		processed++
		logger.Success("LEDGER", fmt.Sprintf("payment %d from %d accepted, access until %s",
			row.ExternalID, row.PayerID, validUntil.Format(time.RFC3339)))
		if r.notify != nil {
			r.notify.PaymentAccepted(row.PayerID, entry.Amount, validUntil)
		}
	}
	return processed, nil
}

// applyPayment credits a qualifying payment to the payer's access grant and
// returns the resulting expiry. A new payer gets the grace window on top of
// the purchased months; an existing payer is extended from whichever is
// later, now or the current expiry.
func (r *Reconciler) applyPayment(payerID int64, amount float64, now time.Time) (time.Time, error) {
	months := int(amount / r.cfg.MonthlyFeeISK)
	grant, err := r.store.GetGrant(payerID)
	if err != nil {
		return time.Time{}, err
	}
	if grant == nil {
		validUntil := now.AddDate(0, months, r.cfg.GraceDays)
		err := r.store.InsertGrantBatch([]db.Grant{{
			EntityID:   payerID,
			EntityType: db.EntityCharacter,
			Level:      1,
			ValidUntil: &validUntil,
		}})
		if err != nil {
			return time.Time{}, err
		}
		return validUntil, nil
	}
	return r.store.ExtendGrant(payerID, months, now)
}

// PurgeGrants removes every grant whose expiry has passed and notifies the
// affected entities. Grants without an expiry are never purged.
func (r *Reconciler) PurgeGrants(now time.Time) (int, error) {
	expired, err := r.store.ExpiredGrants(now)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, g := range expired {
		if err := r.store.DeleteGrant(g.EntityID); err != nil {
			logger.Error("LEDGER", fmt.Sprintf("delete grant %d: %v", g.EntityID, err))
			continue
		}
		removed++
		logger.Info("LEDGER", fmt.Sprintf("access expired for entity %d", g.EntityID))
		if r.notify != nil {
			r.notify.AccessExpired(g.EntityID)
		}
	}
	return removed, nil
}
