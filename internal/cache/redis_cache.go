package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultOpTimeout 单次Redis操作的超时时间
// 渲染路径上缓存是优先于重算的快路径，慢Redis不应拖住渲染
const defaultOpTimeout = 3 * time.Second

// RedisCache 基于Redis的渲染结果缓存
// 每次操作使用独立的带超时上下文；Clear只清理render:键空间，
// 不影响同一数据库中任务队列等其他键
type RedisCache struct {
	client     *redis.Client
	opTimeout  time.Duration
	defaultTTL time.Duration // ttl<=0时的兜底过期时间
}

// NewRedisCache 创建Redis缓存并验证连接
func NewRedisCache(config Config) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisCache{
		client:     client,
		opTimeout:  defaultOpTimeout,
		defaultTTL: ttl,
	}, nil
}

// opContext 创建单次操作的上下文
func (r *RedisCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.opTimeout)
}

// Get 读取缓存的渲染结果
func (r *RedisCache) Get(key string) (string, bool, error) {
	ctx, cancel := r.opContext()
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set 写入渲染结果
// ttl小于等于0时使用配置的默认过期时间，渲染缓存永不长存
func (r *RedisCache) Set(key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.defaultTTL
	}

	ctx, cancel := r.opContext()
	defer cancel()
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete 删除单个缓存项
func (r *RedisCache) Delete(key string) error {
	ctx, cancel := r.opContext()
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

// Clear 清空本服务写入的渲染缓存
// 按render:前缀扫描删除，同库的其他键不受影响
func (r *RedisCache) Clear() error {
	ctx, cancel := r.opContext()
	defer cancel()

	iter := r.client.Scan(ctx, 0, renderKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// 在包初始化时注册Redis缓存
func init() {
	RegisterCache("redis", NewRedisCache)
}
