package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/models"
)

// ColorGameService runs the color-pick rooms. A join that fills the room
// settles it in the same transaction: the join, the winner resolution and
// every payout either all commit or none do.
type ColorGameService struct {
	db     *sql.DB
	wallet *WalletService
	cfg    *config.GameConfig
	rng    *rand.Rand
}

func NewColorGameService(db *sql.DB, wallet *WalletService, cfg *config.GameConfig) *ColorGameService {
	return &ColorGameService{
		db:     db,
		wallet: wallet,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// resolveWinningColor picks the winner for a finished room. Colors nobody
// chose win first (uniform pick among them); otherwise the least-picked
// color wins, ties broken by declared color order. pick(n) returns an
// index in [0, n).
func resolveWinningColor(availableColors []string, counts map[string]int, pick func(n int) int) string {
	var unpicked []string
	for _, c := range availableColors {
		if counts[c] == 0 {
			unpicked = append(unpicked, c)
		}
	}
	if len(unpicked) > 0 {
		return unpicked[pick(len(unpicked))]
	}

	winner := ""
	minCount := 0
	for _, c := range availableColors {
		if winner == "" || counts[c] < minCount {
			winner = c
			minCount = counts[c]
		}
	}
	return winner
}

func (s *ColorGameService) CreateRoom(roomID string, entryFee, benefitFeeMultiplier, winningAmount decimal.Decimal, maxPlayers int, availableColors []string) (*models.GameRoom, error) {
	if !entryFee.IsPositive() || maxPlayers < 2 || len(availableColors) < 2 {
		return nil, ErrInvalidAmount
	}

	room := &models.GameRoom{
		ID:                   uuid.NewString(),
		RoomID:               roomID,
		Status:               models.RoomWaiting,
		EntryFee:             trunc2(entryFee),
		BenefitFeeMultiplier: benefitFeeMultiplier,
		WinningAmount:        trunc2(winningAmount),
		MaxPlayers:           maxPlayers,
		AvailableColors:      availableColors,
		ColorCounts:          map[string]int{},
		CreatedAt:            time.Now(),
	}
	colorsJSON, err := json.Marshal(room.AvailableColors)
	if err != nil {
		return nil, err
	}
	countsJSON, err := json.Marshal(room.ColorCounts)
	if err != nil {
		return nil, err
	}

	_, err = s.db.Exec(`
		INSERT INTO game_rooms (id, room_id, status, entry_fee, benefit_fee_multiplier, winning_amount,
		                        max_players, current_players, available_colors, color_counts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10)`,
		room.ID, room.RoomID, room.Status, room.EntryFee, room.BenefitFeeMultiplier, room.WinningAmount,
		room.MaxPlayers, colorsJSON, countsJSON, room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom enters an account into a waiting room, debiting the normal
// bucket by the entry fee and the benefit bucket by the fee times the
// room's multiplier. The join that fills the room also settles it.
func (s *ColorGameService) JoinRoom(roomID, accountID, color string) (*models.GamePlayer, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	room, err := s.lockRoom(tx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Status != models.RoomWaiting {
		return nil, ErrRoomNotWaiting
	}
	if room.CurrentPlayers >= room.MaxPlayers {
		return nil, ErrRoomFull
	}
	if !containsColor(room.AvailableColors, color) {
		return nil, ErrInvalidSelection
	}

	normalFee := room.EntryFee
	benefitFee := trunc2(room.EntryFee.Mul(room.BenefitFeeMultiplier))

	err = s.wallet.DebitTx(tx, accountID, models.BucketNormal, normalFee, models.EntryGameEntry,
		fmt.Sprintf("Entry fee for game room %s", room.RoomID), &room.ID)
	if err != nil {
		return nil, err
	}
	if benefitFee.IsPositive() {
		err = s.wallet.DebitTx(tx, accountID, models.BucketBenefit, benefitFee, models.EntryGameEntry,
			fmt.Sprintf("Benefit entry fee for game room %s", room.RoomID), &room.ID)
		if err != nil {
			return nil, err
		}
	}

	player := &models.GamePlayer{
		ID:               uuid.NewString(),
		RoomID:           room.ID,
		AccountID:        accountID,
		ColorSelected:    color,
		NormalDeduction:  normalFee,
		BenefitDeduction: benefitFee,
		JoinedAt:         time.Now(),
	}
	_, err = tx.Exec(`
		INSERT INTO game_players (id, room_id, account_id, color_selected, normal_deduction, benefit_deduction,
		                          has_won, amount_won, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, 0, $7)`,
		player.ID, player.RoomID, player.AccountID, player.ColorSelected,
		player.NormalDeduction, player.BenefitDeduction, player.JoinedAt)
	if err != nil {
		return nil, err
	}

	room.CurrentPlayers++
	room.ColorCounts[color]++

	if room.CurrentPlayers >= room.MaxPlayers {
		if err := s.settle(tx, room); err != nil {
			return nil, err
		}
	} else {
		countsJSON, err := json.Marshal(room.ColorCounts)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(`UPDATE game_rooms SET current_players = $1, color_counts = $2 WHERE id = $3`,
			room.CurrentPlayers, countsJSON, room.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return player, nil
}

func (s *ColorGameService) settle(tx *sql.Tx, room *models.GameRoom) error {
	winner := resolveWinningColor(room.AvailableColors, room.ColorCounts, s.rng.Intn)

	payout := room.WinningAmount
	if s.cfg.PayoutShape == models.PayoutMultiplier {
		payout = trunc2(room.EntryFee.Mul(room.WinningAmount))
	}

	rows, err := tx.Query(`
		SELECT id, account_id FROM game_players
		WHERE room_id = $1 AND color_selected = $2`, room.ID, winner)
	if err != nil {
		return err
	}
	type winRow struct{ playerID, accountID string }
	var winners []winRow
	for rows.Next() {
		var w winRow
		if err := rows.Scan(&w.playerID, &w.accountID); err != nil {
			rows.Close()
			return err
		}
		winners = append(winners, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, w := range winners {
		err := s.wallet.CreditTx(tx, w.accountID, models.BucketNormal, payout, models.EntryGameWin,
			fmt.Sprintf("Won %s in game room %s", winner, room.RoomID), &room.ID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE game_players SET has_won = TRUE, amount_won = $1 WHERE id = $2`,
			payout, w.playerID)
		if err != nil {
			return err
		}
	}

	countsJSON, err := json.Marshal(room.ColorCounts)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = tx.Exec(`
		UPDATE game_rooms
		SET status = $1, current_players = $2, color_counts = $3, winning_color = $4, end_time = $5
		WHERE id = $6`,
		models.RoomCompleted, room.CurrentPlayers, countsJSON, winner, now, room.ID)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"room":    room.RoomID,
		"winner":  winner,
		"players": room.CurrentPlayers,
		"winners": len(winners),
	}).Info("[GAME] color room settled")
	return nil
}

// ResetCompletedRooms returns completed rooms to the waiting state, dropping
// their players, once they are older than the configured reset delay. The
// whole sweep is one transaction.
func (s *ColorGameService) ResetCompletedRooms() (int, error) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.ResetDelaySeconds) * time.Second)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id FROM game_rooms
		WHERE status = $1 AND end_time <= $2
		FOR UPDATE`, models.RoomCompleted, cutoff)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM game_players WHERE room_id = $1`, id); err != nil {
			return 0, err
		}
		_, err := tx.Exec(`
			UPDATE game_rooms
			SET status = $1, current_players = 0, color_counts = '{}',
			    winning_color = NULL, end_time = NULL
			WHERE id = $2`, models.RoomWaiting, id)
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *ColorGameService) ListRooms(status string) ([]models.GameRoom, error) {
	query := `
		SELECT id, room_id, status, entry_fee, benefit_fee_multiplier, winning_amount,
		       max_players, current_players, available_colors, color_counts, winning_color, end_time, created_at
		FROM game_rooms`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []models.GameRoom
	for rows.Next() {
		room, err := scanGameRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (s *ColorGameService) GetRoom(roomID string) (*models.GameRoom, error) {
	row := s.db.QueryRow(`
		SELECT id, room_id, status, entry_fee, benefit_fee_multiplier, winning_amount,
		       max_players, current_players, available_colors, color_counts, winning_color, end_time, created_at
		FROM game_rooms
		WHERE room_id = $1`, roomID)
	room, err := scanGameRoom(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	return room, err
}

func (s *ColorGameService) lockRoom(tx *sql.Tx, roomID string) (*models.GameRoom, error) {
	row := tx.QueryRow(`
		SELECT id, room_id, status, entry_fee, benefit_fee_multiplier, winning_amount,
		       max_players, current_players, available_colors, color_counts, winning_color, end_time, created_at
		FROM game_rooms
		WHERE room_id = $1
		FOR UPDATE`, roomID)
	room, err := scanGameRoom(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	return room, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGameRoom(row rowScanner) (*models.GameRoom, error) {
	var room models.GameRoom
	var colorsJSON, countsJSON []byte
	var winningColor sql.NullString
	err := row.Scan(&room.ID, &room.RoomID, &room.Status, &room.EntryFee, &room.BenefitFeeMultiplier,
		&room.WinningAmount, &room.MaxPlayers, &room.CurrentPlayers, &colorsJSON, &countsJSON,
		&winningColor, &room.EndTime, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(colorsJSON, &room.AvailableColors); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(countsJSON, &room.ColorCounts); err != nil {
		return nil, err
	}
	room.WinningColor = winningColor.String
	return &room, nil
}

func containsColor(colors []string, color string) bool {
	for _, c := range colors {
		if c == color {
			return true
		}
	}
	return false
}
