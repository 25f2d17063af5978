package redis

import (
	"context"
	_ "embed"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/runestake/settlement/errors"
	"github.com/runestake/settlement/ulogger"
)

var (
	//go:embed lock.lua
	lockLUA string

	//go:embed extend.lua
	extendLUA string

	//go:embed free.lua
	freeLUA string

	//go:embed transfer.lua
	transferLUA string

	lockScript     = redis.NewScript(lockLUA)
	extendScript   = redis.NewScript(extendLUA)
	freeScript     = redis.NewScript(freeLUA)
	transferScript = redis.NewScript(transferLUA)
)

// Store keeps locks as plain string keys holding the owner. Ownership checks
// run inside Lua scripts so they are atomic with the change they guard.
type Store struct {
	client redis.UniversalClient
	prefix string
	logger ulogger.Logger
}

func New(logger ulogger.Logger, u *url.URL, prefix string) (*Store, error) {
	o := &redis.Options{
		Addr: u.Host,
	}

	if u.Path != "" && u.Path != "/" {
		db, err := strconv.Atoi(u.Path[1:])
		if err != nil {
			return nil, errors.NewConfigurationError("redis path must be a database number", err)
		}

		o.DB = db
	}

	if u.User != nil {
		o.Username = u.User.Username()

		if p, ok := u.User.Password(); ok {
			o.Password = p
		}
	}

	logger.Infof("[LockStore] using redis at %s db %d", o.Addr, o.DB)

	return NewWithClient(logger, redis.NewClient(o), prefix), nil
}

func NewWithClient(logger ulogger.Logger, client redis.UniversalClient, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *Store) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return http.StatusServiceUnavailable, "NO_PING", errors.NewStorageError("redis ping failed", err)
	}

	if checkLiveness {
		key := s.prefix + "health_check"

		pipe := s.client.Pipeline()
		pipe.Set(ctx, key, "ok", time.Second)
		pipe.Get(ctx, key)
		pipe.Del(ctx, key)

		if _, err := pipe.Exec(ctx); err != nil {
			return http.StatusServiceUnavailable, "NO_SET_GET_DEL", errors.NewStorageError("redis operations check failed", err)
		}
	}

	return http.StatusOK, "OK", nil
}

func (s *Store) keys(keys []string) []string {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.prefix + key
	}

	return prefixed
}

func (s *Store) TryLock(ctx context.Context, key string, owner string, ttl time.Duration) (bool, error) {
	res, err := lockScript.Run(ctx, s.client, []string{s.prefix + key}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, errors.NewStorageError("failed to lock %s", key, err)
	}

	return res == 1, nil
}

func (s *Store) Extend(ctx context.Context, keys []string, owner string, ttl time.Duration) error {
	if len(keys) == 0 {
		return nil
	}

	res, err := extendScript.Run(ctx, s.client, s.keys(keys), owner, ttl.Milliseconds()).Int()
	if err != nil {
		return errors.NewStorageError("failed to extend locks", err)
	}

	if res != 0 {
		return errors.NewTransactionExpiredError("lock on %s is no longer held", keys[res-1])
	}

	return nil
}

func (s *Store) Transfer(ctx context.Context, keys []string, from string, to string, ttl time.Duration) error {
	if len(keys) == 0 {
		return nil
	}

	res, err := transferScript.Run(ctx, s.client, s.keys(keys), from, to, ttl.Milliseconds()).Int()
	if err != nil {
		return errors.NewStorageError("failed to transfer locks", err)
	}

	if res != 0 {
		return errors.NewTransactionExpiredError("lock on %s is no longer held by %s", keys[res-1], from)
	}

	return nil
}

func (s *Store) Free(ctx context.Context, keys []string, owner string) error {
	if len(keys) == 0 {
		return nil
	}

	freed, err := freeScript.Run(ctx, s.client, s.keys(keys), owner).Int()
	if err != nil {
		return errors.NewStorageError("failed to free locks", err)
	}

	if freed != len(keys) {
		s.logger.Debugf("[LockStore] freed %d of %d locks for %s", freed, len(keys), owner)
	}

	return nil
}

func (s *Store) Exists(ctx context.Context, keys []string) (map[string]bool, error) {
	exists := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return exists, nil
	}

	values, err := s.client.MGet(ctx, s.keys(keys)...).Result()
	if err != nil {
		return nil, errors.NewStorageError("failed to check locks", err)
	}

	for i, key := range keys {
		exists[key] = values[i] != nil
	}

	return exists, nil
}
