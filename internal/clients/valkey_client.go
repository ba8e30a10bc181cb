package clients

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/moodmeter/config"
	"github.com/spacesedan/moodmeter/internal/sentiment"
	"github.com/valkey-io/valkey-go"
)

// ValkeyCache stores classifier predictions keyed by the text digest.
type ValkeyCache struct {
	Client valkey.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg config.ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress: []string{
			cfg.Address,
		},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}

	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.Address))
	return client, nil
}

func NewValkeyCache(client valkey.Client, ttl time.Duration) *ValkeyCache {
	return &ValkeyCache{Client: client, ttl: ttl}
}

func (vc *ValkeyCache) Get(ctx context.Context, key string) (sentiment.Prediction, bool, error) {
	res := vc.DoWithRetry(ctx, func() valkey.Completed {
		return vc.Client.B().Get().Key(key).Build()
	}, 3)

	raw, err := res.ToString()
	if valkey.IsValkeyNil(err) {
		return sentiment.Prediction{}, false, nil
	}
	if err != nil {
		return sentiment.Prediction{}, false, err
	}

	var p sentiment.Prediction
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return sentiment.Prediction{}, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return p, true, nil
}

func (vc *ValkeyCache) Set(ctx context.Context, key string, p sentiment.Prediction) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}

	seconds := int64(vc.ttl / time.Second)
	return vc.DoWithRetry(ctx, func() valkey.Completed {
		cmd := vc.Client.B().Set().Key(key).Value(string(b))
		if seconds > 0 {
			return cmd.ExSeconds(seconds).Build()
		}
		return cmd.Build()
	}, 3).Error()
}

// DoWithRetry retries connection errors only. Commands are rebuilt on every
// attempt because the client recycles them after Do.
func (vc *ValkeyCache) DoWithRetry(ctx context.Context, build func() valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < retries; i++ {
		result = vc.Client.Do(ctx, build())
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) || !isConnectionError(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return result
		case <-time.After(250 * time.Millisecond):
		}
	}

	return result
}

func (vc *ValkeyCache) Close() {
	vc.Client.Close()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
