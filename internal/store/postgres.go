package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

type roomRow struct {
	RoomID    string `gorm:"primaryKey;column:room_id"`
	State     []byte `gorm:"type:jsonb;not null"`
	Revision  int64  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (roomRow) TableName() string { return "rooms" }

// PostgresStore keeps one row per room in a rooms table.
type PostgresStore struct {
	db *gorm.DB
}

func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&roomRow{}); err != nil {
		return nil, fmt.Errorf("migrate rooms table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Load(ctx context.Context, roomID string) (game.State, int64, error) {
	var row roomRow
	err := p.db.WithContext(ctx).First(&row, "room_id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return game.State{}, 0, ErrNotFound
	}
	if err != nil {
		return game.State{}, 0, fmt.Errorf("load room %s: %w", roomID, err)
	}
	var s game.State
	if err := json.Unmarshal(row.State, &s); err != nil {
		return game.State{}, 0, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return s, row.Revision, nil
}

func (p *PostgresStore) CompareAndSwap(ctx context.Context, roomID string, s game.State, expected int64) (bool, error) {
	blob, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("encode room %s: %w", roomID, err)
	}
	tx := p.db.WithContext(ctx).
		Model(&roomRow{}).
		Where("room_id = ? AND revision = ?", roomID, expected).
		Updates(map[string]any{"state": blob, "revision": expected + 1})
	if tx.Error != nil {
		return false, fmt.Errorf("cas room %s: %w", roomID, tx.Error)
	}
	return tx.RowsAffected == 1, nil
}

func (p *PostgresStore) Create(ctx context.Context, roomID string, s game.State) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", roomID, err)
	}
	err = p.db.WithContext(ctx).Create(&roomRow{RoomID: roomID, State: blob, Revision: 0}).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create room %s: %w", roomID, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, roomID string) error {
	err := p.db.WithContext(ctx).Delete(&roomRow{}, "room_id = ?", roomID).Error
	if err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}
