package services

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"

	"github.com/skip2/go-qrcode"
	log "github.com/sirupsen/logrus"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/models"
)

// ReferralService is the sole writer of ancestor chains. Chains are
// denormalized onto the account row for fast distribution reads; edits to
// the referral tree after the initial build require an explicit rebuild.
type ReferralService struct {
	db     *sql.DB
	wallet *WalletService
	cfg    *config.MLMConfig
}

func NewReferralService(db *sql.DB, wallet *WalletService, cfg *config.MLMConfig) *ReferralService {
	return &ReferralService{db: db, wallet: wallet, cfg: cfg}
}

// AssignReferrer links a freshly enrolled account to the owner of
// referralCode and stamps its ancestor chain, paying the configured instant
// signup bonus to the direct referrer. One transaction for the whole call.
func (s *ReferralService) AssignReferrer(accountID, referralCode string) ([]models.AncestorLink, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var referredBy sql.NullString
	err = tx.QueryRow(`SELECT referred_by FROM accounts WHERE id = $1 FOR UPDATE`, accountID).
		Scan(&referredBy)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	if referredBy.Valid {
		return nil, fmt.Errorf("%w: account %s", ErrAlreadyReferred, accountID)
	}

	var referrerID string
	err = tx.QueryRow(`SELECT id FROM accounts WHERE referral_code = $1`, referralCode).
		Scan(&referrerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrReferralCodeUnknown, referralCode)
	}
	if err != nil {
		return nil, err
	}
	if referrerID == accountID {
		return nil, fmt.Errorf("%w: account %s referred itself", ErrReferralCycle, accountID)
	}

	if _, err := tx.Exec(`UPDATE accounts SET referred_by = $1, updated_at = NOW() WHERE id = $2`,
		referrerID, accountID); err != nil {
		return nil, err
	}

	chain, err := s.BuildAncestorChainTx(tx, accountID)
	if err != nil {
		return nil, err
	}

	if s.cfg.SignupBonus.IsPositive() {
		err = s.wallet.CreditTx(tx, referrerID, models.BucketNormal, s.cfg.SignupBonus,
			models.EntryReferralBonus, "Instant referral bonus for enrolling a new account", &accountID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return chain, nil
}

// BuildAncestorChainTx walks referred_by pointers upward, stamping
// {ancestorId, level, percent} up to the configured max depth. The depth cap
// already bounds any cycle, but a seen-set guard rejects one outright
// instead of silently truncating it.
func (s *ReferralService) BuildAncestorChainTx(tx *sql.Tx, accountID string) ([]models.AncestorLink, error) {
	var parent sql.NullString
	err := tx.QueryRow(`SELECT referred_by FROM accounts WHERE id = $1`, accountID).Scan(&parent)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{accountID: true}
	chain := make([]models.AncestorLink, 0, s.cfg.MaxDepth)

	for level := 1; parent.Valid && level <= s.cfg.MaxDepth; level++ {
		ancestorID := parent.String
		if seen[ancestorID] {
			return nil, fmt.Errorf("%w: account %s appears twice in the upline of %s",
				ErrReferralCycle, ancestorID, accountID)
		}
		seen[ancestorID] = true

		chain = append(chain, models.AncestorLink{
			AncestorID:   ancestorID,
			Level:        level,
			SharePercent: s.cfg.LevelPercent(level),
		})

		err = tx.QueryRow(`SELECT referred_by FROM accounts WHERE id = $1`, ancestorID).Scan(&parent)
		if err == sql.ErrNoRows {
			break // upline ends at a deleted account
		}
		if err != nil {
			return nil, err
		}
	}

	encoded, err := json.Marshal(chain)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(`UPDATE accounts SET ancestors = $1, level = $2, updated_at = NOW() WHERE id = $3`,
		encoded, len(chain), accountID)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// RebuildAll rebuilds every account's chain, one transaction per account so
// a single bad record does not abort the sweep.
func (s *ReferralService) RebuildAll() (rebuilt, failed int, err error) {
	rows, err := s.db.Query(`SELECT id FROM accounts ORDER BY created_at`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}

	for _, id := range ids {
		if err := s.rebuildOne(id); err != nil {
			failed++
			log.WithError(err).WithField("account_id", id).Error("[MLM] chain rebuild failed")
			continue
		}
		rebuilt++
	}
	log.WithFields(log.Fields{"rebuilt": rebuilt, "failed": failed}).Info("[MLM] chain rebuild completed")
	return rebuilt, failed, nil
}

func (s *ReferralService) rebuildOne(accountID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.BuildAncestorChainTx(tx, accountID); err != nil {
		return err
	}
	return tx.Commit()
}

// AncestorsTx loads an account's stored chain inside the caller's
// transaction.
func (s *ReferralService) AncestorsTx(tx *sql.Tx, accountID string) ([]models.AncestorLink, error) {
	var encoded []byte
	err := tx.QueryRow(`SELECT ancestors FROM accounts WHERE id = $1`, accountID).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return nil, err
	}
	var chain []models.AncestorLink
	if len(encoded) > 0 {
		if err := json.Unmarshal(encoded, &chain); err != nil {
			return nil, fmt.Errorf("account %s: decoding ancestors: %w", accountID, err)
		}
	}
	return chain, nil
}

// ReferralQR renders an account's referral join link as a base64 PNG.
func (s *ReferralService) ReferralQR(accountID string) (string, string, error) {
	var code string
	err := s.db.QueryRow(`SELECT referral_code FROM accounts WHERE id = $1`, accountID).Scan(&code)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	if err != nil {
		return "", "", err
	}

	link := fmt.Sprintf("%s?ref=%s", s.cfg.JoinBaseURL, code)
	qr, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}
	return link, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
