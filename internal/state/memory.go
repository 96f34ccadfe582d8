package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type memoryManager struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryManager keeps checkpoints in process memory. Used for dry
// runs, where nothing should outlive the process.
func NewMemoryManager() Manager {
	return &memoryManager{data: make(map[string][]byte)}
}

func (m *memoryManager) Save(_ context.Context, stage string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", stage, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[stage] = payload
	return nil
}

func (m *memoryManager) Load(_ context.Context, stage string, out any) (bool, error) {
	m.mu.Lock()
	payload, ok := m.data[stage]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to decode checkpoint %s: %w", stage, err)
	}
	return true, nil
}

func (m *memoryManager) Clear(_ context.Context, stage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, stage)
	return nil
}
