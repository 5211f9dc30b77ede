package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/growfund/backend/internal/config"
	"github.com/growfund/backend/internal/models"
)

// NumberGameService runs the big/small rooms. Entries are paid from the
// dedicated game bucket, which players fund via TransferToGame; the side
// with fewer players wins, small winning ties.
type NumberGameService struct {
	db     *sql.DB
	wallet *WalletService
	cfg    *config.GameConfig
}

func NewNumberGameService(db *sql.DB, wallet *WalletService, cfg *config.GameConfig) *NumberGameService {
	return &NumberGameService{db: db, wallet: wallet, cfg: cfg}
}

// resolveWinningSide applies the minority rule: the side with fewer
// players wins, and an even split goes to small.
func resolveWinningSide(bigCount, smallCount int) string {
	if bigCount < smallCount {
		return models.SideBig
	}
	return models.SideSmall
}

// TransferToGame moves funds from the normal bucket into the game bucket,
// the only bucket number-game entries draw from.
func (s *NumberGameService) TransferToGame(accountID string, amount decimal.Decimal) error {
	return s.wallet.Transfer(accountID, models.BucketNormal, models.BucketGame, amount,
		models.EntryTransfer, "Transfer to game wallet")
}

func (s *NumberGameService) CreateRoom(roomID string, entryFee, winningMultiplier decimal.Decimal, maxPlayers int) (*models.NumberGameRoom, error) {
	if !entryFee.IsPositive() || maxPlayers < 2 {
		return nil, ErrInvalidAmount
	}

	room := &models.NumberGameRoom{
		ID:                uuid.NewString(),
		RoomID:            roomID,
		Status:            models.RoomWaiting,
		EntryFee:          trunc2(entryFee),
		WinningMultiplier: winningMultiplier,
		MaxPlayers:        maxPlayers,
		CreatedAt:         time.Now(),
	}
	_, err := s.db.Exec(`
		INSERT INTO number_game_rooms (id, room_id, status, entry_fee, winning_multiplier,
		                               max_players, current_players, big_count, small_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7)`,
		room.ID, room.RoomID, room.Status, room.EntryFee, room.WinningMultiplier,
		room.MaxPlayers, room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom enters an account on a side, debiting the game bucket by the
// entry fee. The join that fills the room settles it in the same
// transaction.
func (s *NumberGameService) JoinRoom(roomID, accountID, side string) (*models.NumberGamePlayer, error) {
	if side != models.SideBig && side != models.SideSmall {
		return nil, ErrInvalidSelection
	}

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

	err = s.wallet.DebitTx(tx, accountID, models.BucketGame, room.EntryFee, models.EntryGameEntry,
		fmt.Sprintf("Entry fee for number room %s", room.RoomID), &room.ID)
	if err != nil {
		return nil, err
	}

	player := &models.NumberGamePlayer{
		ID:          uuid.NewString(),
		RoomID:      room.ID,
		AccountID:   accountID,
		Side:        side,
		EntryAmount: room.EntryFee,
		JoinedAt:    time.Now(),
	}
	_, err = tx.Exec(`
		INSERT INTO number_game_players (id, room_id, account_id, side, entry_amount, has_won, amount_won, joined_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, 0, $6)`,
		player.ID, player.RoomID, player.AccountID, player.Side, player.EntryAmount, player.JoinedAt)
	if err != nil {
		return nil, err
	}

	room.CurrentPlayers++
	if side == models.SideBig {
		room.BigCount++
	} else {
		room.SmallCount++
	}

	if room.CurrentPlayers >= room.MaxPlayers {
		if err := s.settle(tx, room); err != nil {
			return nil, err
		}
	} else {
		_, err = tx.Exec(`
			UPDATE number_game_rooms
			SET current_players = $1, big_count = $2, small_count = $3
			WHERE id = $4`,
			room.CurrentPlayers, room.BigCount, room.SmallCount, room.ID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return player, nil
}

// settle pays each winner their entry back into the normal bucket plus
// the win amount into the withdrawal bucket.
func (s *NumberGameService) settle(tx *sql.Tx, room *models.NumberGameRoom) error {
	winner := resolveWinningSide(room.BigCount, room.SmallCount)

	winAmount := room.EntryFee
	if s.cfg.PayoutShape == models.PayoutMultiplier {
		winAmount = trunc2(room.EntryFee.Mul(room.WinningMultiplier))
	}

	rows, err := tx.Query(`
		SELECT id, account_id, entry_amount FROM number_game_players
		WHERE room_id = $1 AND side = $2`, room.ID, winner)
	if err != nil {
		return err
	}
	type winRow struct {
		playerID, accountID string
		entry               decimal.Decimal
	}
	var winners []winRow
	for rows.Next() {
		var w winRow
		if err := rows.Scan(&w.playerID, &w.accountID, &w.entry); err != nil {
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
		err := s.wallet.CreditTx(tx, w.accountID, models.BucketNormal, w.entry, models.EntryGameWin,
			fmt.Sprintf("Entry returned for number room %s", room.RoomID), &room.ID)
		if err != nil {
			return err
		}
		err = s.wallet.CreditTx(tx, w.accountID, models.BucketWithdrawal, winAmount, models.EntryGameWin,
			fmt.Sprintf("Won %s side in number room %s", winner, room.RoomID), &room.ID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`UPDATE number_game_players SET has_won = TRUE, amount_won = $1 WHERE id = $2`,
			winAmount, w.playerID)
		if err != nil {
			return err
		}
	}

	now := time.Now()
	_, err = tx.Exec(`
		UPDATE number_game_rooms
		SET status = $1, current_players = $2, big_count = $3, small_count = $4, winning_side = $5, end_time = $6
		WHERE id = $7`,
		models.RoomCompleted, room.CurrentPlayers, room.BigCount, room.SmallCount, winner, now, room.ID)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"room":    room.RoomID,
		"winner":  winner,
		"big":     room.BigCount,
		"small":   room.SmallCount,
		"winners": len(winners),
	}).Info("[GAME] number room settled")
	return nil
}

// ResetCompletedRooms returns settled rooms to the waiting state once they
// have been completed for at least the configured delay, so clients get a
// window to read results before the room recycles.
func (s *NumberGameService) ResetCompletedRooms() (int, error) {
	cutoff := time.Now().Add(-time.Duration(s.cfg.ResetDelaySeconds) * time.Second)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id FROM number_game_rooms
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
		if _, err := tx.Exec(`DELETE FROM number_game_players WHERE room_id = $1`, id); err != nil {
			return 0, err
		}
		_, err := tx.Exec(`
			UPDATE number_game_rooms
			SET status = $1, current_players = 0, big_count = 0, small_count = 0,
			    winning_side = NULL, end_time = NULL
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

func (s *NumberGameService) ListRooms(status string) ([]models.NumberGameRoom, error) {
	query := `
		SELECT id, room_id, status, entry_fee, winning_multiplier, max_players, current_players,
		       big_count, small_count, winning_side, end_time, created_at
		FROM number_game_rooms`
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

	var rooms []models.NumberGameRoom
	for rows.Next() {
		room, err := scanNumberRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	return rooms, rows.Err()
}

func (s *NumberGameService) GetRoom(roomID string) (*models.NumberGameRoom, error) {
	row := s.db.QueryRow(`
		SELECT id, room_id, status, entry_fee, winning_multiplier, max_players, current_players,
		       big_count, small_count, winning_side, end_time, created_at
		FROM number_game_rooms
		WHERE room_id = $1`, roomID)
	room, err := scanNumberRoom(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	return room, err
}

func (s *NumberGameService) lockRoom(tx *sql.Tx, roomID string) (*models.NumberGameRoom, error) {
	row := tx.QueryRow(`
		SELECT id, room_id, status, entry_fee, winning_multiplier, max_players, current_players,
		       big_count, small_count, winning_side, end_time, created_at
		FROM number_game_rooms
		WHERE room_id = $1
		FOR UPDATE`, roomID)
	room, err := scanNumberRoom(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	return room, err
}

func scanNumberRoom(row rowScanner) (*models.NumberGameRoom, error) {
	var room models.NumberGameRoom
	var winningSide sql.NullString
	err := row.Scan(&room.ID, &room.RoomID, &room.Status, &room.EntryFee, &room.WinningMultiplier,
		&room.MaxPlayers, &room.CurrentPlayers, &room.BigCount, &room.SmallCount,
		&winningSide, &room.EndTime, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	room.WinningSide = winningSide.String
	return &room, nil
}
