package geocoder

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resolver fuente de códigos IBGE detrás del cache.
type Resolver interface {
	MunicipalityCode(ctx context.Context, cep string) (string, error)
}

// CachedGeocoder LRU acotado con TTL sobre un Resolver. Los fallos no se guardan y
// las búsquedas concurrentes del mismo CEP se agrupan en una sola llamada.
type CachedGeocoder struct {
	next    Resolver
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	order *list.List // frente = usado más recientemente
	items map[string]*list.Element
	group singleflight.Group
}

type cacheEntry struct {
	cep       string
	code      string
	expiresAt time.Time
}

// NewCachedGeocoder maxSize <= 0 usa 1024 entradas; ttl <= 0 no expira.
func NewCachedGeocoder(next Resolver, maxSize int, ttl time.Duration) *CachedGeocoder {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &CachedGeocoder{
		next:    next,
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		order:   list.New(),
		items:   make(map[string]*list.Element),
	}
}

// WithClock reemplaza el reloj (tests).
func (c *CachedGeocoder) WithClock(now func() time.Time) *CachedGeocoder {
	c.now = now
	return c
}

// MunicipalityCode devuelve el código en cache o lo resuelve con el Resolver.
func (c *CachedGeocoder) MunicipalityCode(ctx context.Context, cep string) (string, error) {
	key, err := NormalizeCEP(cep)
	if err != nil {
		return "", err
	}
	if code, ok := c.get(key); ok {
		return code, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if code, ok := c.get(key); ok {
			return code, nil
		}
		code, err := c.next.MunicipalityCode(ctx, key)
		if err != nil {
			return "", err
		}
		c.put(key, code)
		return code, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate elimina un CEP del cache.
func (c *CachedGeocoder) Invalidate(cep string) {
	key, err := NormalizeCEP(cep)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Purge vacía el cache.
func (c *CachedGeocoder) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
}

// Len cantidad de entradas (incluye vencidas aún no desalojadas).
func (c *CachedGeocoder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *CachedGeocoder) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return "", false
	}
	e := el.Value.(*cacheEntry)
	if c.ttl > 0 && !c.now().Before(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return "", false
	}
	c.order.MoveToFront(el)
	return e.code, true
}

func (c *CachedGeocoder) put(key, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	if el, ok := c.items[key]; ok {
		e := el.Value.(*cacheEntry)
		e.code, e.expiresAt = code, exp
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&cacheEntry{cep: key, code: code, expiresAt: exp})
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).cep)
	}
}
