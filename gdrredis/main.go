// Package gdrredis provides a Redis session adapter for the gdr query
// engine. Entities live as JSON values under <table>:<id> keys; query
// plans evaluate by scanning the entity's key space and filtering the
// decoded records in memory. Suited to small working sets and caches,
// not large tables.
package gdrredis

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lemmego/gdr"
)

// =====================================
// Provider Registration
// =====================================

func init() {
	for _, driver := range SupportedDrivers() {
		gdr.RegisterPlanSessionProvider(driver, Info(), func(config gdr.Config) (gdr.PlanSession, error) {
			return NewSession(config)
		})
	}
}

// SupportedDrivers returns the list of supported database drivers
func SupportedDrivers() []string {
	return []string{"redis"}
}

// Info returns the provider metadata for this adapter
func Info() gdr.ProviderInfo {
	return gdr.ProviderInfo{
		Name:         "Redis",
		Version:      "1.0.0",
		DatabaseType: gdr.DatabaseTypeKV,
		Features: []gdr.Feature{
			gdr.FeaturePagination,
			gdr.FeatureTTL,
		},
	}
}

// =====================================
// Session Implementation
// =====================================

// Session implements gdr.PlanSession over a Redis database.
type Session struct {
	client *redis.Client
	config gdr.Config
}

// NewSession connects to Redis and verifies the connection.
func NewSession(config gdr.Config) (*Session, error) {
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       0,
	}

	// The database number rides in the Database field
	if config.Database != "" {
		if db, err := strconv.Atoi(config.Database); err == nil {
			opts.DB = db
		}
	}

	if config.MaxOpenConns > 0 {
		opts.PoolSize = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		opts.MinIdleConns = config.MaxIdleConns
	}

	if options, ok := config.Options["redis"]; ok {
		if redisOpts, ok := options.(map[string]interface{}); ok {
			if dialTimeout, ok := redisOpts["dial_timeout"].(time.Duration); ok {
				opts.DialTimeout = dialTimeout
			}
			if readTimeout, ok := redisOpts["read_timeout"].(time.Duration); ok {
				opts.ReadTimeout = readTimeout
			}
			if writeTimeout, ok := redisOpts["write_timeout"].(time.Duration); ok {
				opts.WriteTimeout = writeTimeout
			}
		}
	}

	session := &Session{client: redis.NewClient(opts), config: config}
	if err := session.Health(context.Background()); err != nil {
		return nil, gdr.NewErrorWithCause(gdr.ErrorKindConfiguration, "failed to connect to Redis", err)
	}
	return session, nil
}

// Wrap builds a session over an existing Redis client.
func Wrap(client *redis.Client) *Session {
	return &Session{client: client}
}

// Health checks the Redis connection health
func (s *Session) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Session) Close() error {
	return s.client.Close()
}

// Client exposes the underlying Redis client for operations outside
// the engine, such as raw commands or data-structure access.
func (s *Session) Client() *redis.Client {
	return s.client
}

// =====================================
// Entity Storage
// =====================================

// Store writes a record as a JSON document under <table>:<id>. The
// record's type must be registered with the default registry or be
// registrable.
func (s *Session) Store(ctx context.Context, record interface{}) error {
	return s.StoreWithTTL(ctx, record, 0)
}

// StoreWithTTL writes a record with an expiry. A zero TTL stores the
// record without expiry.
func (s *Session) StoreWithTTL(ctx context.Context, record interface{}, ttl time.Duration) error {
	desc, err := gdr.Register(record)
	if err != nil {
		return err
	}

	value := reflect.ValueOf(record)
	for value.Kind() == reflect.Ptr {
		value = value.Elem()
	}

	doc := make(map[string]interface{}, len(desc.Fields))
	for _, field := range desc.Fields {
		doc[field.Column] = value.FieldByIndex(field.Index).Interface()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return gdr.NewErrorWithCause(gdr.ErrorKindTypeMismatch, "failed to serialize record", err)
	}

	id := value.FieldByIndex(desc.Identifier().Index).Interface()
	key := entityKey(desc.TableName, fmt.Sprintf("%v", id))
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Remove deletes the record stored under the given identifier.
func (s *Session) Remove(ctx context.Context, record interface{}, id interface{}) error {
	desc, err := gdr.Register(record)
	if err != nil {
		return err
	}
	key := entityKey(desc.TableName, fmt.Sprintf("%v", id))
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return gdr.NewErrorf(gdr.ErrorKindNotFound, "no %s record under id %v", desc.Name, id)
	}
	return nil
}

// entityKey constructs the full Redis key for a record.
func entityKey(table, id string) string {
	return fmt.Sprintf("%s:%s", table, id)
}
