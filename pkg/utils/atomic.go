package utils

import "sync/atomic"

type AtomicBool int32

func (a *AtomicBool) Set(value bool) (swapped bool) {
	if value {
		return atomic.SwapInt32((*int32)(a), 1) == 0
	}
	return atomic.SwapInt32((*int32)(a), 0) == 1
}

func (a *AtomicBool) Get() bool {
	return atomic.LoadInt32((*int32)(a)) != 0
}

type AtomicUInt64 uint64

func (a *AtomicUInt64) Set(value uint64) (previous uint64) {
	return atomic.SwapUint64((*uint64)(a), value)
}

func (a *AtomicUInt64) Get() uint64 {
	return atomic.LoadUint64((*uint64)(a))
}

func (a *AtomicUInt64) Add(delta uint64) uint64 {
	return atomic.AddUint64((*uint64)(a), delta)
}
