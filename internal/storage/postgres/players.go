package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/item"
	"github.com/ambonmud/server/internal/game/player"
)

// playerColumns is the column list shared by every query, in scan order.
const playerColumns = `id, name, password_hash, class, race, level, xp_total, gold,
	stats, room_id, base_max_hp, hp, mana, inventory, equipment,
	active_quests, completed_quests, achievements, is_staff, created_at, updated_at`

// PlayerRepository stores player records in the players table. Implements
// player.Repository.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: pool must be a valid, open connection pool.
func NewPlayerRepository(pool *Pool) *PlayerRepository {
	return &PlayerRepository{db: pool.DB()}
}

// FindByName returns the record for a name, case-insensitively.
//
// Postcondition: Returns the record or player.ErrNotFound.
func (r *PlayerRepository) FindByName(ctx context.Context, name string) (*player.Record, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+playerColumns+` FROM players WHERE LOWER(name) = LOWER($1)`,
		name,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, player.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying player %q: %w", name, err)
	}
	return rec, nil
}

// Save inserts or updates a record keyed by its id.
//
// Postcondition: Returns player.ErrNameTaken when the name collides with a
// different record.
func (r *PlayerRepository) Save(ctx context.Context, rec *player.Record) error {
	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	inventory, err := json.Marshal(rec.Inventory)
	if err != nil {
		return fmt.Errorf("encoding inventory: %w", err)
	}
	equipment, err := json.Marshal(rec.Equipment)
	if err != nil {
		return fmt.Errorf("encoding equipment: %w", err)
	}
	activeQuests, err := json.Marshal(rec.ActiveQuests)
	if err != nil {
		return fmt.Errorf("encoding active quests: %w", err)
	}
	completedQuests, err := json.Marshal(rec.CompletedQuests)
	if err != nil {
		return fmt.Errorf("encoding completed quests: %w", err)
	}
	achievements, err := json.Marshal(rec.Achievements)
	if err != nil {
		return fmt.Errorf("encoding achievements: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO players (`+playerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19, $20, $21)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   password_hash = EXCLUDED.password_hash,
		   class = EXCLUDED.class,
		   race = EXCLUDED.race,
		   level = EXCLUDED.level,
		   xp_total = EXCLUDED.xp_total,
		   gold = EXCLUDED.gold,
		   stats = EXCLUDED.stats,
		   room_id = EXCLUDED.room_id,
		   base_max_hp = EXCLUDED.base_max_hp,
		   hp = EXCLUDED.hp,
		   mana = EXCLUDED.mana,
		   inventory = EXCLUDED.inventory,
		   equipment = EXCLUDED.equipment,
		   active_quests = EXCLUDED.active_quests,
		   completed_quests = EXCLUDED.completed_quests,
		   achievements = EXCLUDED.achievements,
		   is_staff = EXCLUDED.is_staff,
		   updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.Name, rec.PasswordHash, rec.Class, rec.Race, rec.Level,
		rec.XPTotal, rec.Gold, stats, string(rec.RoomID), rec.BaseMaxHP,
		rec.HP, rec.Mana, inventory, equipment, activeQuests,
		completedQuests, achievements, rec.IsStaff, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return player.ErrNameTaken
		}
		return fmt.Errorf("saving player %q: %w", rec.Name, err)
	}
	return nil
}

// Exists reports whether a record exists for the name, case-insensitively.
func (r *PlayerRepository) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM players WHERE LOWER(name) = LOWER($1))`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking player %q: %w", name, err)
	}
	return exists, nil
}

func scanRecord(row pgx.Row) (*player.Record, error) {
	var (
		rec             player.Record
		roomID          string
		stats           []byte
		inventory       []byte
		equipment       []byte
		activeQuests    []byte
		completedQuests []byte
		achievements    []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.PasswordHash, &rec.Class, &rec.Race,
		&rec.Level, &rec.XPTotal, &rec.Gold, &stats, &roomID,
		&rec.BaseMaxHP, &rec.HP, &rec.Mana, &inventory, &equipment,
		&activeQuests, &completedQuests, &achievements, &rec.IsStaff,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.RoomID = id.RoomID(roomID)
	if err := json.Unmarshal(stats, &rec.Stats); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	if err := decodeJSON(inventory, &rec.Inventory); err != nil {
		return nil, fmt.Errorf("decoding inventory: %w", err)
	}
	if err := decodeJSON(equipment, &rec.Equipment); err != nil {
		return nil, fmt.Errorf("decoding equipment: %w", err)
	}
	if err := decodeJSON(activeQuests, &rec.ActiveQuests); err != nil {
		return nil, fmt.Errorf("decoding active quests: %w", err)
	}
	if err := decodeJSON(completedQuests, &rec.CompletedQuests); err != nil {
		return nil, fmt.Errorf("decoding completed quests: %w", err)
	}
	if err := decodeJSON(achievements, &rec.Achievements); err != nil {
		return nil, fmt.Errorf("decoding achievements: %w", err)
	}
	if rec.Equipment == nil {
		rec.Equipment = make(map[item.Slot]id.ItemID)
	}
	if rec.ActiveQuests == nil {
		rec.ActiveQuests = make(map[string]int)
	}
	return &rec, nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// isDuplicateKeyError checks for SQLSTATE 23505 (unique_violation).
func isDuplicateKeyError(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
