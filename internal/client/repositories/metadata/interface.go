package metadata

import (
	"context"
)

// Key names a value in the metadata table.
type Key string

// Keys of the persisted session state.
const (
	KeyBearerToken        Key = "bearer_token"
	KeyRefreshToken       Key = "refresh_token"
	KeyCurrentUserID      Key = "current_user_id"
	KeyCurrentUserEmail   Key = "current_user_email"
	KeyCurrentUserCompany Key = "current_user_company"
)

// Repository is a durable key/value store. Get returns (nil, nil) for an
// absent key.
type Repository interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Set(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, keys ...Key) error
	List(ctx context.Context) (map[Key][]byte, error)
	Clear(ctx context.Context) error
}
