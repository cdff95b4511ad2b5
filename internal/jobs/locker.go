// Package jobs — locker.go: блокировка лидера, чтобы обслуживание кэша
// выполнял только один инстанс.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Locker выдаёт эксклюзивную блокировку на время одной итерации задачи.
// acquired=false — блокировку держит кто-то другой, итерацию надо пропустить.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// LocalLocker — без внешней блокировки (один инстанс).
type LocalLocker struct{}

// Acquire всегда успешен.
func (LocalLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// releaseScript удаляет ключ, только если он всё ещё наш.
// KEYS[1] = ключ блокировки, ARGV[1] = владелец
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker — блокировка через SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	owner  string
	prefix string
}

// NewRedisLocker создаёт блокировку поверх клиента Redis.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{
		client: client,
		owner:  uuid.NewString(),
		prefix: "rewards-engine:jobs:",
	}
}

// Acquire пытается взять блокировку на ttl.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, fullKey, l.owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ошибка захвата блокировки %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Контекст итерации к этому моменту может быть отменён
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.release(releaseCtx, fullKey); err != nil {
			log.WithError(err).WithFields(log.Fields{"key": fullKey, "ttl": ttl.String()}).
				Warn("Не удалось снять блокировку, она освободится по TTL")
		}
	}
	return release, true, nil
}

func (l *RedisLocker) release(ctx context.Context, fullKey string) error {
	return releaseScript.Run(ctx, l.client, []string{fullKey}, l.owner).Err()
}
