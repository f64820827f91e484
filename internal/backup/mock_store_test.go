package backup

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// mockStore is a minimal in-memory store for backup tests.
type mockStore struct {
	configs map[string]*model.Config
	failTx  error
}

func newMockStore() *mockStore {
	return &mockStore{configs: make(map[string]*model.Config)}
}

func (m *mockStore) SetConfig(_ context.Context, config *model.Config) error {
	m.configs[config.Key] = config
	return nil
}

func (m *mockStore) GetConfig(_ context.Context, key string) (*model.Config, error) {
	c, ok := m.configs[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (m *mockStore) ListConfigs(_ context.Context, namespace string) ([]*model.Config, error) {
	prefix := namespace + ":"
	var result []*model.Config
	for k, c := range m.configs {
		if strings.HasPrefix(k, prefix) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (m *mockStore) ListAllConfigs(_ context.Context) ([]*model.Config, error) {
	var result []*model.Config
	for _, c := range m.configs {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})
	return result, nil
}

func (m *mockStore) DeleteConfig(_ context.Context, key string) error {
	if _, ok := m.configs[key]; !ok {
		return sql.ErrNoRows
	}
	delete(m.configs, key)
	return nil
}

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	if m.failTx != nil {
		return m.failTx
	}
	return fn(m)
}

func (m *mockStore) Close() error {
	return nil
}
