package chunk

import (
	"context"

	"github.com/kailas-cloud/quizrag/internal/db"
	"github.com/kailas-cloud/quizrag/internal/domain/filter"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetMultiFn   func(ctx context.Context, items []db.HashSetItem) error
	hgetMultiFn   func(ctx context.Context, keys []string, field string) ([]string, error)
	delMultiFn    func(ctx context.Context, keys []string) error
	incrByFn      func(ctx context.Context, key string, val int64) (int64, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
	searchKeysFn  func(ctx context.Context, index string, f filter.Expression, limit int) ([]string, error)
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetMulti(ctx context.Context, keys []string, field string) ([]string, error) {
	if m.hgetMultiFn != nil {
		return m.hgetMultiFn(ctx, keys, field)
	}
	return make([]string, len(keys)), nil
}

func (m *mockStore) DelMulti(ctx context.Context, keys []string) error {
	if m.delMultiFn != nil {
		return m.delMultiFn(ctx, keys)
	}
	return nil
}

func (m *mockStore) IncrBy(ctx context.Context, key string, val int64) (int64, error) {
	if m.incrByFn != nil {
		return m.incrByFn(ctx, key, val)
	}
	return val, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func (m *mockStore) SearchKeys(ctx context.Context, index string, f filter.Expression, limit int) ([]string, error) {
	if m.searchKeysFn != nil {
		return m.searchKeysFn(ctx, index, f, limit)
	}
	return nil, nil
}
