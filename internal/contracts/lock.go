package contracts

import (
	"context"
	"time"

	pkgerrors "github.com/angelmondragon/clausewise-backend/pkg/errors"
	"github.com/google/uuid"
)

const (
	defaultUploadLockTTL  = 2 * time.Minute
	defaultUploadLockWait = 5 * time.Second
	uploadLockPoll        = 50 * time.Millisecond
)

// LockStore is the Redis surface used to serialize one user's uploads.
type LockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// uploadLock keeps the quota check and insert of one upload from
// interleaving with another upload by the same user.
type uploadLock struct {
	store LockStore
	ttl   time.Duration
	wait  time.Duration
}

func newUploadLock(store LockStore, ttl, wait time.Duration) *uploadLock {
	if store == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultUploadLockTTL
	}
	if wait <= 0 {
		wait = defaultUploadLockWait
	}
	return &uploadLock{store: store, ttl: ttl, wait: wait}
}

// acquire polls until the user's key is free or wait elapses. The returned
// func releases the key.
func (l *uploadLock) acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	key := l.store.LockKey("upload:" + userID.String())
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire upload lock")
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if !time.Now().Before(deadline) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "another upload is in progress")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uploadLockPoll):
		}
	}
}

// release uses its own context so a canceled request still frees the key.
// The key is only deleted while this upload still owns it.
func (l *uploadLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	current, err := l.store.Get(ctx, key)
	if err != nil || current != token {
		return
	}
	_ = l.store.Del(ctx, key)
}
