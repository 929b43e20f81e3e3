package cache

import (
	"strconv"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/logger"
)

var defaultBase = 10

// MemcacheClient caches rendered replies per user and command, so a
// burst of /today or /history taps does not re-query the store.
type MemcacheClient struct {
	client *memcache.Client
}

type config interface {
	Hosts() []string
}

func NewMemcache(config config) (*MemcacheClient, error) {
	logger.Info("memcached hosts", zap.Strings("hosts", config.Hosts()))
	mc := memcache.New(config.Hosts()...)
	return &MemcacheClient{mc}, mc.Ping()
}

func formatKey(userID int64, command string) string {
	return strconv.FormatInt(userID, defaultBase) + ":" + command
}

func (mc *MemcacheClient) CacheReply(userID int64, command, text string) error {
	return mc.client.Set(&memcache.Item{
		Key:   formatKey(userID, command),
		Value: []byte(text)},
	)
}

func (mc *MemcacheClient) GetReply(userID int64, command string) (string, error) {
	item, err := mc.client.Get(formatKey(userID, command))
	if err != nil {
		return "", err
	}
	return string(item.Value), nil
}

// InvalidateReplies drops the cached replies for the given commands,
// called after every successful write.
func (mc *MemcacheClient) InvalidateReplies(userID int64, commands []string) error {
	logger.Info("invalidate reply cache", zap.Int64("userID", userID))

	for _, cmd := range commands {
		err := mc.client.Delete(formatKey(userID, cmd))
		if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
			return err
		}
	}
	return nil
}
