package registry

import (
	"fmt"
	"sync"

	"github.com/cloudwebrtc/go-rtc-bridge/pkg/bridge"
)

// MemoryRegistry keeps sessions in process memory.
type MemoryRegistry struct {
	mutex    *sync.Mutex
	sessions map[string]*bridge.Bridge
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]*bridge.Bridge),
		mutex:    new(sync.Mutex),
	}
}

func (mr *MemoryRegistry) Add(b *bridge.Bridge) error {
	if b == nil {
		return fmt.Errorf("nil session")
	}
	mr.mutex.Lock()
	defer mr.mutex.Unlock()
	if _, ok := mr.sessions[b.ID()]; ok {
		return fmt.Errorf("session [%s] already registered", b.ID())
	}
	mr.sessions[b.ID()] = b
	return nil
}

func (mr *MemoryRegistry) Remove(id string) error {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()
	if _, ok := mr.sessions[id]; !ok {
		return fmt.Errorf("session [%s] not found", id)
	}
	delete(mr.sessions, id)
	return nil
}

func (mr *MemoryRegistry) Get(id string) (*bridge.Bridge, bool) {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()
	b, ok := mr.sessions[id]
	return b, ok
}

func (mr *MemoryRegistry) All() []*bridge.Bridge {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()
	out := make([]*bridge.Bridge, 0, len(mr.sessions))
	for _, b := range mr.sessions {
		out = append(out, b)
	}
	return out
}

func (mr *MemoryRegistry) Len() int {
	mr.mutex.Lock()
	defer mr.mutex.Unlock()
	return len(mr.sessions)
}
