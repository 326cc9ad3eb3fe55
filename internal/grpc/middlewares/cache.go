package middleware

// Responses are kept in an in-memory LRU; golang-lru evicts the least
// recently used entry once the cache is full.

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// ResponseCache caches successful unary responses of selected methods.
type ResponseCache struct {
	cache   *lru.Cache
	methods map[string]bool
}

// NewResponseCache builds a cache holding up to size responses. Only the
// listed full method names are cached; with none listed every method is.
func NewResponseCache(size int, methods ...string) (*ResponseCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	c := &ResponseCache{cache: cache, methods: make(map[string]bool, len(methods))}
	for _, m := range methods {
		c.methods[m] = true
	}
	return c, nil
}

// Purge drops every cached response.
func (c *ResponseCache) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached responses.
func (c *ResponseCache) Len() int {
	return c.cache.Len()
}

// Interceptor returns the caching interceptor. Errors are never cached.
func (c *ResponseCache) Interceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if len(c.methods) > 0 && !c.methods[info.FullMethod] {
			return handler(ctx, req)
		}

		key, ok := cacheKey(info.FullMethod, req)
		if !ok {
			return handler(ctx, req)
		}

		if cached, hit := c.cache.Get(key); hit {
			return cached, nil
		}

		resp, err := handler(ctx, req)
		if err != nil {
			return nil, err
		}

		c.cache.Add(key, resp)
		return resp, nil
	}
}

// cacheKey derives a key from the method and the deterministic wire form of
// the request.
func cacheKey(method string, req interface{}) (string, bool) {
	msg, ok := req.(proto.Message)
	if !ok {
		return fmt.Sprintf("%s:%v", method, req), true
	}
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(msg)
	if err != nil {
		return "", false
	}
	return method + ":" + string(b), true
}
