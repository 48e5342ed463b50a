package cache

import "time"

// BytesCache stores serialized response payloads with a TTL. Consensus reads
// go through it so bursts do not hit Postgres per request.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}
