package schema

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]EntityType)
	registryMu sync.RWMutex
)

// Register adds an entity type to the registry.
// Panics if a type with the same key is already registered.
func Register(et EntityType) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[et.Key]; exists {
		panic(fmt.Sprintf("entity type already registered: %s", et.Key))
	}
	registry[et.Key] = et
}

// Get returns an entity type by key.
// Returns false if not found.
func Get(key string) (EntityType, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	et, ok := registry[key]
	return et, ok
}

// All returns all registered entity types, sorted by key.
func All() []EntityType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]EntityType, 0, len(registry))
	for _, et := range registry {
		result = append(result, et)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// Keys returns all registered entity type keys, sorted.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes all registered entity types.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]EntityType)
}
