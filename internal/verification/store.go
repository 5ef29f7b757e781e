// Package verification implements the transient code store used by the
// password-reset and email-verification flows.  Codes are 6-digit decimal
// strings kept under a normalized key with a single TTL; re-issuing
// overwrites any pending code and a successful consume deletes the entry
// (one-time use).
//
// The primary backend is Redis so pending codes survive restarts and
// multi-instance deployments.  When no Redis server is reachable the
// service falls back to a process-local store with a janitor sweep.
package verification

import (
    "context"
    "crypto/rand"
    "errors"
    "math/big"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
)

// TTL is the lifetime of every issued code.  One policy for reset and
// verification codes across both account kinds.
const TTL = 10 * time.Minute

// ErrInvalidOrExpired is returned by Consume when no pending code exists
// for the key, the supplied code does not match, or the entry expired.
var ErrInvalidOrExpired = errors.New("invalid or expired code")

// Store is an expiring keyed code store.
type Store interface {
    // Issue generates a fresh code for the key, overwriting any pending one.
    Issue(ctx context.Context, key string) (string, error)
    // IssueWith stores a caller-supplied code (clients may pre-generate the
    // code they display), overwriting any pending one.
    IssueWith(ctx context.Context, key, code string) error
    // Consume validates and deletes the pending code for the key.
    Consume(ctx context.Context, key, code string) error
}

// ResetKey namespaces a password-reset code. account is "user" or
// "caregiver"; the two account kinds never share codes.
func ResetKey(account, email string) string {
    return "reset:" + account + ":" + strings.ToLower(strings.TrimSpace(email))
}

// VerifyKey namespaces an email-verification code.
func VerifyKey(account, email string) string {
    return "verify:" + account + ":" + strings.ToLower(strings.TrimSpace(email))
}

// NewCode returns a random 6-digit decimal code.
func NewCode() (string, error) {
    n, err := rand.Int(rand.Reader, big.NewInt(900000))
    if err != nil {
        return "", err
    }
    return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// NewStore returns a Redis-backed store when a client is available and the
// in-memory fallback otherwise.
func NewStore(client *redis.Client) Store {
    if client != nil {
        return &RedisStore{client: client}
    }
    return NewMemoryStore(TTL)
}

// RedisStore keeps codes in Redis with a TTL, so expiry needs no sweep.
type RedisStore struct {
    client *redis.Client
}

func (s *RedisStore) Issue(ctx context.Context, key string) (string, error) {
    code, err := NewCode()
    if err != nil {
        return "", err
    }
    return code, s.IssueWith(ctx, key, code)
}

func (s *RedisStore) IssueWith(ctx context.Context, key, code string) error {
    return s.client.Set(ctx, key, code, TTL).Err()
}

func (s *RedisStore) Consume(ctx context.Context, key, code string) error {
    stored, err := s.client.Get(ctx, key).Result()
    if err == redis.Nil {
        return ErrInvalidOrExpired
    }
    if err != nil {
        return err
    }
    if stored != code {
        return ErrInvalidOrExpired
    }
    return s.client.Del(ctx, key).Err()
}

// MemoryStore is the process-local fallback.  Entries past their expiry
// are rejected on read and reaped by a background janitor so unconsumed
// codes do not accumulate.
type MemoryStore struct {
    mu      sync.Mutex
    entries map[string]memoryEntry
    ttl     time.Duration

    stop     chan struct{}
    stopOnce sync.Once
}

type memoryEntry struct {
    code      string
    expiresAt time.Time
}

// NewMemoryStore builds a fallback store with the given TTL and starts
// its janitor.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
    s := &MemoryStore{
        entries: map[string]memoryEntry{},
        ttl:     ttl,
        stop:    make(chan struct{}),
    }
    go s.janitor()
    return s
}

// Close stops the janitor. The store stays usable; expired entries are
// still rejected on read, they just stop being reaped.
func (s *MemoryStore) Close() {
    s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) Issue(ctx context.Context, key string) (string, error) {
    code, err := NewCode()
    if err != nil {
        return "", err
    }
    return code, s.IssueWith(ctx, key, code)
}

func (s *MemoryStore) IssueWith(_ context.Context, key, code string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.entries[key] = memoryEntry{code: code, expiresAt: time.Now().Add(s.ttl)}
    return nil
}

func (s *MemoryStore) Consume(_ context.Context, key, code string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.entries[key]
    if !ok || e.code != code || time.Now().After(e.expiresAt) {
        return ErrInvalidOrExpired
    }
    delete(s.entries, key)
    return nil
}

// janitor reaps expired entries once a minute until Close is called.
func (s *MemoryStore) janitor() {
    t := time.NewTicker(time.Minute)
    defer t.Stop()
    for {
        select {
        case <-s.stop:
            return
        case now := <-t.C:
            s.mu.Lock()
            for k, e := range s.entries {
                if now.After(e.expiresAt) {
                    delete(s.entries, k)
                }
            }
            s.mu.Unlock()
        }
    }
}
