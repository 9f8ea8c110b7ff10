package store

import (
	"hash/fnv"
	"sync"
)

const DefaultLockStripes = 64

// KeyLock serialises work per key over a fixed set of mutexes. Keys hashing
// to different stripes never wait for each other.
type KeyLock struct {
	stripes []sync.Mutex
}

func NewKeyLock(stripes int) *KeyLock {
	if stripes < 1 {
		stripes = DefaultLockStripes
	}

	return &KeyLock{stripes: make([]sync.Mutex, stripes)}
}

func (l *KeyLock) stripe(key []byte) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}

func (l *KeyLock) Lock(key []byte) {
	l.stripe(key).Lock()
}

func (l *KeyLock) Unlock(key []byte) {
	l.stripe(key).Unlock()
}
