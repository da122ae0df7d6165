package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"support-chat/internal/domain"
)

// Reemplazo completo de la clave en una sola operación: la cache siempre
// contiene la ventana entera o no existe. Nunca se agrega de a turnos, porque
// una clave expirada y reconstruida parcialmente serviría una ventana más
// corta que la real. ARGV[1] = TTL en segundos, ARGV[2..] = entradas.
const redisStoreWindowScript = `
redis.call("DEL", KEYS[1])
redis.call("RPUSH", KEYS[1], unpack(ARGV, 2))
redis.call("EXPIRE", KEYS[1], ARGV[1])
return redis.call("LLEN", KEYS[1])
`

type redisCommander interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisContextCache mantiene la ventana reciente de cada conversación en una
// lista Redis. Es puro best-effort: el store durable sigue siendo la fuente
// de verdad y cualquier fallo aquí sólo degrada a leer del store.
type RedisContextCache struct {
	client redisCommander
	window int
	ttl    time.Duration
	prefix string
}

func NewRedisContextCache(client *redis.Client, ttl time.Duration) *RedisContextCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisContextCache{
		client: client,
		window: contextWindowSize,
		ttl:    ttl,
		prefix: "chat:recent:",
	}
}

type cachedTurn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Store reemplaza la ventana cacheada de la conversación con msgs, que debe
// ser la ventana reciente completa leída del store. Si la escritura falla
// borra la clave: una ventana incompleta no debe servirse jamás.
func (c *RedisContextCache) Store(ctx context.Context, conversationID string, msgs []domain.Message) error {
	if c == nil || c.client == nil {
		return nil
	}

	key := c.prefix + conversationID
	if len(msgs) == 0 {
		return c.client.Del(ctx, key).Err()
	}
	if len(msgs) > c.window {
		msgs = msgs[len(msgs)-c.window:]
	}

	args := make([]interface{}, 0, len(msgs)+1)
	args = append(args, int(c.ttl.Seconds()))
	for _, m := range msgs {
		entry, err := json.Marshal(cachedTurn{Sender: m.Sender, Text: m.Text})
		if err != nil {
			return err
		}
		args = append(args, string(entry))
	}

	if err := c.client.Eval(ctx, redisStoreWindowScript, []string{key}, args...).Err(); err != nil {
		c.client.Del(ctx, key)
		return err
	}
	return nil
}

// Invalidate borra la ventana cacheada. Se usa cuando el transcript cambió
// pero la cache no pudo seguirlo, por ejemplo al persistir un turno de
// usuario cuya respuesta nunca llegó.
func (c *RedisContextCache) Invalidate(ctx context.Context, conversationID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.prefix+conversationID).Err()
}

// Recent devuelve la ventana cacheada en orden cronológico. Lista vacía
// significa cache miss; el caller decide caer al store. Un hit siempre es la
// ventana completa porque Store escribe la clave entera o la borra.
func (c *RedisContextCache) Recent(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	key := c.prefix + conversationID
	entries, err := c.client.LRange(ctx, key, int64(-c.window), -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(entries))
	for _, entry := range entries {
		var turn cachedTurn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, err
		}
		messages = append(messages, domain.Message{
			ConversationID: conversationID,
			Sender:         turn.Sender,
			Text:           turn.Text,
		})
	}
	return messages, nil
}
