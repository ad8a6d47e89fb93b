package devicekeys

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
	"github.com/dmitrijs2005/wgdaemon/internal/dbx"
)

const selectColumns = `SELECT device_id, user_id, device_name, company_name, public_key, private_key FROM device_keys`

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Upsert must run inside a transaction for the eviction and the insert to be
// atomic; the credential store does that.
func (r *SQLiteRepository) Upsert(ctx context.Context, kp models.DeviceKeyPair) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM device_keys WHERE device_id = ? OR user_id = ?`, kp.DeviceID, kp.UserID); err != nil {
		return fmt.Errorf("failed to evict device keys for device %d / user %d: %w", kp.DeviceID, kp.UserID, err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_keys (device_id, user_id, device_name, company_name, public_key, private_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, kp.DeviceID, kp.UserID, kp.DeviceName, kp.CompanyName,
		[]byte(kp.SigningPublicKey), []byte(kp.SigningPrivateKey), r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert device keys for device %d: %w", kp.DeviceID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByUserID(ctx context.Context, userID int64) (*models.DeviceKeyPair, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE user_id = ?`, userID)
	kp, err := scanKeyPair(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get device keys for user %d: %w", userID, err)
	}
	return kp, nil
}

func (r *SQLiteRepository) GetByDeviceID(ctx context.Context, deviceID int64) (*models.DeviceKeyPair, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE device_id = ?`, deviceID)
	kp, err := scanKeyPair(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get device keys for device %d: %w", deviceID, err)
	}
	return kp, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.DeviceKeyPair, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at, device_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list device keys: %w", err)
	}
	defer rows.Close()

	var result []models.DeviceKeyPair
	for rows.Next() {
		kp, err := scanKeyPair(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device keys row: %w", err)
		}
		result = append(result, *kp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate device keys rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByDeviceID(ctx context.Context, deviceID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_keys WHERE device_id = ?`, deviceID); err != nil {
		return fmt.Errorf("failed to delete device keys for device %d: %w", deviceID, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_keys`); err != nil {
		return fmt.Errorf("failed to clear device keys: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKeyPair(s scanner) (*models.DeviceKeyPair, error) {
	var (
		kp        models.DeviceKeyPair
		pub, priv []byte
	)
	err := s.Scan(&kp.DeviceID, &kp.UserID, &kp.DeviceName, &kp.CompanyName, &pub, &priv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(pub) != ed25519.PublicKeySize || len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("corrupt key material for device %d", kp.DeviceID)
	}
	kp.SigningPublicKey = ed25519.PublicKey(pub)
	kp.SigningPrivateKey = ed25519.PrivateKey(priv)
	return &kp, nil
}
