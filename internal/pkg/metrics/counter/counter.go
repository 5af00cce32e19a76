package counter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/assistdesk/assistdesk/internal/pkg/cache"
	"github.com/assistdesk/assistdesk/internal/pkg/database"
)

const apiKeyRequestsKey = "apikey:counters:requests"

// AddAPIKeyRequest increments the pending request counter for an API key in Redis
func AddAPIKeyRequest(ctx context.Context, keyID uint) error {
	field := strconv.FormatUint(uint64(keyID), 10)
	return cache.GetClient().HIncrBy(ctx, apiKeyRequestsKey, field, 1).Err()
}

// FlushAll flushes the pending counters to the database
func FlushAll() error {
	return Flush(context.Background(), cache.GetClient(), database.GetDB())
}

// Flush drains the request counters from rdb and adds them to api_keys.request_count.
func Flush(ctx context.Context, rdb *redis.Client, db *gorm.DB) error {
	pairs, err := drain(ctx, rdb, apiKeyRequestsKey)
	if err != nil || len(pairs) == 0 {
		return err
	}
	sql, args := batchIncrement("api_keys", "request_count", pairs)
	return db.WithContext(ctx).Exec(sql, args...).Error
}

type increment struct {
	id  uint64
	inc int64
}

// drain moves the hash to a temporary key with RENAME so increments that
// arrive during the flush land in a fresh hash.
func drain(ctx context.Context, rdb *redis.Client, redisKey string) ([]increment, error) {
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Rename(ctx, redisKey, tmpKey).Err(); err != nil {
		// nothing to flush
		if errors.Is(err, redis.Nil) || strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil, nil
		}
		return nil, err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}

	pairs := make([]increment, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, increment{id: id, inc: inc})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })
	return pairs, nil
}

// batchIncrement builds
// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN (...)
func batchIncrement(table, column string, pairs []increment) (string, []interface{}) {
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")
	return builder.String(), args
}
