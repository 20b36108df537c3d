package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/habit-elevate/agent/contract"
)

var _ contractx.OwnerDirectory = (*OwnerDirectory)(nil)

// OwnerDirectory looks up owners in users_profile by phone number.
type OwnerDirectory struct {
	db  bun.IDB
	now func() time.Time
}

func NewOwnerDirectory(db bun.IDB) *OwnerDirectory {
	return &OwnerDirectory{db: db, now: time.Now}
}

// FindByPhone returns the owner id registered for phone, or an error wrapping ErrNotFound.
func (d *OwnerDirectory) FindByPhone(ctx context.Context, phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("%w: phone is required", contractx.ErrValidation)
	}

	owner := new(contractx.Owner)
	err := d.db.NewSelect().Model(owner).Column("id").Where("u.phone = ?", phone).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no owner for phone %s", contractx.ErrNotFound, phone)
	}
	if err != nil {
		return "", fmt.Errorf("%w: find owner by phone: %v", contractx.ErrUpstream, err)
	}
	return owner.ID, nil
}

// Register binds phone to userID, replacing any phone previously bound to that user.
func (d *OwnerDirectory) Register(ctx context.Context, userID string, phone string) error {
	userID = strings.TrimSpace(userID)
	phone = strings.TrimSpace(phone)
	if userID == "" || phone == "" {
		return fmt.Errorf("%w: user_id and phone are required", contractx.ErrValidation)
	}

	owner := &contractx.Owner{
		ID:        userID,
		Phone:     phone,
		CreatedAt: d.now().UTC(),
	}
	_, err := d.db.NewInsert().
		Model(owner).
		On("CONFLICT (id) DO UPDATE").
		Set("phone = EXCLUDED.phone").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: register owner: %v", contractx.ErrUpstream, err)
	}
	return nil
}
