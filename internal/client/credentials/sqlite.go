package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/wgdaemon/internal/client/migrations"
	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/client/repositories/devicekeys"
	"github.com/dmitrijs2005/wgdaemon/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/wgdaemon/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the session in a local SQLite database.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// OpenSQLite opens (or creates) the database at dsn and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the handle for diagnostics and tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) write(ctx context.Context, fn func(ctx context.Context, md metadata.Repository, dk devicekeys.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, metadata.NewSQLiteRepository(tx), devicekeys.NewSQLiteRepository(tx))
	})
}

func (s *SQLiteStore) Tokens(ctx context.Context) (models.Tokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md := metadata.NewSQLiteRepository(s.db)
	access, err := md.Get(ctx, metadata.KeyBearerToken)
	if err != nil {
		return models.Tokens{}, err
	}
	refresh, err := md.Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		return models.Tokens{}, err
	}
	return models.Tokens{AccessToken: string(access), RefreshToken: string(refresh)}, nil
}

func (s *SQLiteStore) SaveTokens(ctx context.Context, t models.Tokens) error {
	return s.write(ctx, func(ctx context.Context, md metadata.Repository, _ devicekeys.Repository) error {
		return saveTokens(ctx, md, t)
	})
}

func saveTokens(ctx context.Context, md metadata.Repository, t models.Tokens) error {
	if err := md.Set(ctx, metadata.KeyBearerToken, []byte(t.AccessToken)); err != nil {
		return err
	}
	return md.Set(ctx, metadata.KeyRefreshToken, []byte(t.RefreshToken))
}

func (s *SQLiteStore) CurrentUser(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	md := metadata.NewSQLiteRepository(s.db)
	rawID, err := md.Get(ctx, metadata.KeyCurrentUserID)
	if err != nil {
		return nil, err
	}
	if rawID == nil {
		return nil, ErrNoSession
	}
	id, err := strconv.ParseInt(string(rawID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt current user id %q: %w", rawID, err)
	}
	email, err := md.Get(ctx, metadata.KeyCurrentUserEmail)
	if err != nil {
		return nil, err
	}
	company, err := md.Get(ctx, metadata.KeyCurrentUserCompany)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Email: string(email), CompanyName: string(company)}, nil
}

func (s *SQLiteStore) SaveLogin(ctx context.Context, r models.AuthResult) error {
	return s.write(ctx, func(ctx context.Context, md metadata.Repository, _ devicekeys.Repository) error {
		if err := md.Set(ctx, metadata.KeyCurrentUserID, []byte(strconv.FormatInt(r.User.ID, 10))); err != nil {
			return err
		}
		if err := md.Set(ctx, metadata.KeyCurrentUserEmail, []byte(r.User.Email)); err != nil {
			return err
		}
		if err := md.Set(ctx, metadata.KeyCurrentUserCompany, []byte(r.User.CompanyName)); err != nil {
			return err
		}
		return saveTokens(ctx, md, r.Tokens)
	})
}

func (s *SQLiteStore) ClearLogin(ctx context.Context) error {
	return s.write(ctx, func(ctx context.Context, md metadata.Repository, _ devicekeys.Repository) error {
		return md.Delete(ctx,
			metadata.KeyBearerToken, metadata.KeyRefreshToken,
			metadata.KeyCurrentUserID, metadata.KeyCurrentUserEmail, metadata.KeyCurrentUserCompany)
	})
}

func (s *SQLiteStore) SaveDeviceKeyPair(ctx context.Context, kp models.DeviceKeyPair) error {
	return s.write(ctx, func(ctx context.Context, _ metadata.Repository, dk devicekeys.Repository) error {
		return dk.Upsert(ctx, kp)
	})
}

func (s *SQLiteStore) DeviceKeyPairByUserID(ctx context.Context, userID int64) (*models.DeviceKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return devicekeys.NewSQLiteRepository(s.db).GetByUserID(ctx, userID)
}

func (s *SQLiteStore) DeviceKeyPairByDeviceID(ctx context.Context, deviceID int64) (*models.DeviceKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return devicekeys.NewSQLiteRepository(s.db).GetByDeviceID(ctx, deviceID)
}

func (s *SQLiteStore) DeviceKeyPairs(ctx context.Context) ([]models.DeviceKeyPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return devicekeys.NewSQLiteRepository(s.db).List(ctx)
}

func (s *SQLiteStore) DeleteDeviceKeyPair(ctx context.Context, deviceID int64) error {
	return s.write(ctx, func(ctx context.Context, _ metadata.Repository, dk devicekeys.Repository) error {
		return dk.DeleteByDeviceID(ctx, deviceID)
	})
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.write(ctx, func(ctx context.Context, md metadata.Repository, dk devicekeys.Repository) error {
		return errors.Join(md.Clear(ctx), dk.Clear(ctx))
	})
}
