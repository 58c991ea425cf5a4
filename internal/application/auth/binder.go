package auth

import (
	"context"
	"time"

	"github.com/auth-otp-api/internal/domain"
	"github.com/auth-otp-api/internal/pkg/id"
)

type deviceStore interface {
	Put(ctx context.Context, d *domain.Device) error
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	DeleteByUser(ctx context.Context, userID string) error
}

// Binder records which client a user's current session runs on. Binding
// replaces all prior device rows for the user; combined with
// single-active-session token rotation, the user's device list only ever
// reflects the login that produced the live token pair.
type Binder struct {
	repo deviceStore
}

func NewBinder(repo deviceStore) *Binder {
	return &Binder{repo: repo}
}

func (b *Binder) Bind(ctx context.Context, userID, deviceUUID, clientInfo string) (*domain.Device, error) {
	if err := b.repo.DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := &domain.Device{
		DeviceID:   id.New(),
		UserID:     userID,
		DeviceUUID: deviceUUID,
		ClientInfo: clientInfo,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := b.repo.Put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Devices lists the device rows currently bound to the user.
func (b *Binder) Devices(ctx context.Context, userID string) ([]domain.Device, error) {
	return b.repo.ListByUser(ctx, userID)
}
