package store

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
)

// MemoryDSN selects the in-process backend.
const MemoryDSN = "memory://"

// Stores holds one MessageStore per persisted platform.
type Stores struct {
	facebook  MessageStore
	instagram MessageStore
}

// NewStores builds Postgres-backed stores over pool.
func NewStores(pool *pgxpool.Pool, facebook, instagram model.BusinessIdentity) *Stores {
	return &Stores{
		facebook:  newPGMessageStore(pool, model.PlatformFacebook, facebook),
		instagram: newPGMessageStore(pool, model.PlatformInstagram, instagram),
	}
}

// NewMemoryStores builds in-process stores.
func NewMemoryStores(facebook, instagram model.BusinessIdentity) *Stores {
	return &Stores{
		facebook:  newMemoryMessageStore(model.PlatformFacebook, facebook),
		instagram: newMemoryMessageStore(model.PlatformInstagram, instagram),
	}
}

// NewStoresFrom wraps existing stores, for tests and alternate backends.
func NewStoresFrom(facebook, instagram MessageStore) *Stores {
	return &Stores{facebook: facebook, instagram: instagram}
}

// IsMemoryDSN reports whether dsn selects the in-process backend.
func IsMemoryDSN(dsn string) bool {
	return dsn == "" || strings.HasPrefix(dsn, MemoryDSN)
}

func (s *Stores) Facebook() MessageStore {
	return s.facebook
}

func (s *Stores) Instagram() MessageStore {
	return s.instagram
}

// For returns the store for a persisted platform.
func (s *Stores) For(p model.Platform) (MessageStore, error) {
	switch p {
	case model.PlatformFacebook:
		return s.facebook, nil
	case model.PlatformInstagram:
		return s.instagram, nil
	default:
		return nil, fmt.Errorf("platform %q has no message store", p)
	}
}
