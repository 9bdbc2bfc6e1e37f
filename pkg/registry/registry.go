package registry

import "github.com/cloudwebrtc/go-rtc-bridge/pkg/bridge"

// Registry tracks live bridge sessions by ID.
type Registry interface {
	Add(b *bridge.Bridge) error
	Remove(id string) error
	Get(id string) (*bridge.Bridge, bool)
	All() []*bridge.Bridge
	Len() int
}
