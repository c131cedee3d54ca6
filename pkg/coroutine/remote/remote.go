package remote

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vnykmshr/tickflow/pkg/coroutine/condition"
)

// Client is the subset of redis.Cmdable used by this package. *redis.Client,
// *redis.ClusterClient and redis.UniversalClient satisfy it.
type Client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const (
	defaultTimeout  = 50 * time.Millisecond
	defaultInterval = 100 * time.Millisecond
)

// Option configures a remote condition.
type Option func(*options)

type options struct {
	timeout  time.Duration
	interval time.Duration
	clock    condition.Clock
}

// WithTimeout bounds each round trip to Redis (default: 50ms). A poll that
// times out counts as unsatisfied.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPollInterval sets the minimum time between two round trips
// (default: 100ms). Polls in between report unsatisfied without contacting
// Redis. Zero queries on every poll.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.interval = d
		}
	}
}

// WithClock makes the poll interval use c instead of the system clock.
func WithClock(c condition.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		timeout:  defaultTimeout,
		interval: defaultInterval,
		clock:    condition.SystemClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// poller runs a throttled Redis query and latches on the first success.
type poller struct {
	options
	query func(ctx context.Context) (bool, error)

	last  time.Time
	polls int
	err   error
	fired bool
}

func (p *poller) IsSatisfied() bool {
	if p.fired {
		return true
	}
	now := p.clock.Now()
	if p.polls > 0 && now.Sub(p.last) < p.interval {
		return false
	}
	p.last = now
	p.polls++

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	ok, err := p.query(ctx)
	p.err = err
	if err != nil || !ok {
		return false
	}
	p.fired = true
	return true
}

func (p *poller) IsFinished() bool {
	return p.fired
}

// Polls returns the number of round trips made to Redis.
func (p *poller) Polls() int {
	return p.polls
}

// Err returns the error of the last round trip, or nil.
func (p *poller) Err() error {
	return p.err
}

// KeyCondition is satisfied once a Redis key exists.
type KeyCondition struct {
	poller
	key string
}

// KeyExists returns a condition satisfied on the first poll that finds key
// in Redis. Connection errors are kept in Err and the condition keeps
// polling.
func KeyExists(c Client, key string, opts ...Option) *KeyCondition {
	kc := &KeyCondition{key: key}
	kc.options = buildOptions(opts)
	kc.query = func(ctx context.Context) (bool, error) {
		n, err := c.Exists(ctx, key).Result()
		return n > 0, err
	}
	return kc
}

// Key returns the awaited key.
func (c *KeyCondition) Key() string {
	return c.key
}

// LockCondition is satisfied once a lock key has been claimed.
type LockCondition struct {
	poller
	client Client
	key    string
	token  string
}

// Acquire returns a condition satisfied on the first poll that creates key
// with SET NX, holding it for ttl. The routine owns the lock once resumed and
// should call Release when done.
func Acquire(c Client, key, token string, ttl time.Duration, opts ...Option) *LockCondition {
	lc := &LockCondition{client: c, key: key, token: token}
	lc.options = buildOptions(opts)
	lc.query = func(ctx context.Context) (bool, error) {
		return c.SetNX(ctx, key, token, ttl).Result()
	}
	return lc
}

// Key returns the lock key.
func (c *LockCondition) Key() string {
	return c.key
}

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release deletes the lock key while it still holds this condition's token.
// It is a no-op if the lock was never acquired or has since been taken by
// another holder. Clients implementing redis.Scripter release atomically with
// a Lua script. Others check the token with GET before DEL, which leaves a
// short window in which a lock claimed after our ttl expired can be deleted.
func (c *LockCondition) Release(ctx context.Context) error {
	if !c.fired {
		return nil
	}
	if sc, ok := c.client.(redis.Scripter); ok {
		err := releaseScript.Run(ctx, sc, []string{c.key}, c.token).Err()
		if err == redis.Nil {
			return nil
		}
		return err
	}

	held, err := c.client.Get(ctx, c.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if held != c.token {
		return nil
	}
	return c.client.Del(ctx, c.key).Err()
}

// Signal sets key so that routines waiting on KeyExists(key) resume. A zero
// ttl keeps the key until it is deleted.
func Signal(ctx context.Context, c Client, key string, ttl time.Duration) error {
	return c.Set(ctx, key, "1", ttl).Err()
}

// Reset deletes key.
func Reset(ctx context.Context, c Client, key string) error {
	return c.Del(ctx, key).Err()
}
