package utils

import (
	"sync"
)

// OptionalMutex is a mutex that can be compiled out at runtime, for consumers
// that externally synchronize the protocol objects.
type OptionalMutex struct {
	Mutex    sync.Mutex
	UseMutex bool
}

func (m *OptionalMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}
