// SessionCache — LRU-кэш сессий по токену с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/triup-gateway/internal/domain/model"
)

// sessionCacheTTL — время жизни записи кэша сессий.
const sessionCacheTTL = time.Minute

// Prometheus-метрики кэша.
var (
	sessionCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tg_session_cache_hits_total",
		Help: "Общее количество попаданий в кэш сессий.",
	})
	sessionCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tg_session_cache_misses_total",
		Help: "Общее количество промахов кэша сессий.",
	})
)

// SessionCache — кэш сессий. Хранит сессию целиком, поэтому срок действия
// проверяется по ExpiresAt при каждом обращении, а не по TTL кэша.
type SessionCache struct {
	cache *expirable.LRU[string, *model.Session]
}

// NewSessionCache создаёт кэш на maxSize сессий с указанным TTL.
func NewSessionCache(maxSize int, ttl time.Duration) *SessionCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &SessionCache{cache: expirable.NewLRU[string, *model.Session](maxSize, nil, ttl)}
}

// Get возвращает сессию по токену.
func (c *SessionCache) Get(token string) (*model.Session, bool) {
	s, ok := c.cache.Get(token)
	if ok {
		sessionCacheHitsTotal.Inc()
		return s, true
	}
	sessionCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет сессию в кэш.
func (c *SessionCache) Set(token string, s *model.Session) {
	c.cache.Add(token, s)
}

// Len возвращает количество сессий в кэше.
func (c *SessionCache) Len() int {
	return c.cache.Len()
}
