package blob

import (
	memorystore "traitforge/internal/infra/blob/memory"
)

// MemoryStore is the in-memory backend. Its FailList and FailGet hooks let
// tests simulate an unreachable remote store.
type MemoryStore = memorystore.Store

// NewMemory returns an in-memory blob store suitable for tests.
func NewMemory() *MemoryStore { return memorystore.New() }
