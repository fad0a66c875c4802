package memtable

import (
	"slices"
	"strings"

	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("store")

// table holds the values of one table by key
type table = xsync.MapOf[string, common.Value]

type storeImpl struct {
	tables *xsync.MapOf[string, *table]
}

// NewMemTable creates a new in-memory store instance.
// Tables are created lazily on the first write and never removed.
//
// Thread-safety: All methods are safe for concurrent use.
func NewMemTable() store.IStore {
	return &storeImpl{
		tables: xsync.NewMapOf[string, *table](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(tableName, key string) (common.Value, bool, error) {
	if err := validate(tableName); err != nil {
		return common.Value{}, false, err
	}
	t, ok := s.tables.Load(tableName)
	if !ok {
		return common.Value{}, false, nil
	}
	v, ok := t.Load(key)
	return v, ok, nil
}

func (s *storeImpl) GetAll(tableName string) ([]common.Kvpair, error) {
	if err := validate(tableName); err != nil {
		return nil, err
	}
	t, ok := s.tables.Load(tableName)
	if !ok {
		return []common.Kvpair{}, nil
	}

	pairs := make([]common.Kvpair, 0, t.Size())
	t.Range(func(key string, value common.Value) bool {
		pairs = append(pairs, common.NewKvpair(key, value))
		return true
	})
	slices.SortFunc(pairs, func(a, b common.Kvpair) int {
		return strings.Compare(a.Key, b.Key)
	})
	return pairs, nil
}

func (s *storeImpl) Set(tableName, key string, value common.Value) (common.Value, bool, error) {
	if err := validate(tableName); err != nil {
		return common.Value{}, false, err
	}
	t, existed := s.tables.LoadOrCompute(tableName, func() *table {
		return xsync.NewMapOf[string, common.Value]()
	})
	if !existed {
		Logger.Debugf("created table %q", tableName)
	}
	old, loaded := t.LoadAndStore(key, value)
	return old, loaded, nil
}

func (s *storeImpl) Delete(tableName, key string) (common.Value, bool, error) {
	if err := validate(tableName); err != nil {
		return common.Value{}, false, err
	}
	t, ok := s.tables.Load(tableName)
	if !ok {
		return common.Value{}, false, nil
	}
	old, loaded := t.LoadAndDelete(key)
	return old, loaded, nil
}

func (s *storeImpl) Has(tableName, key string) (bool, error) {
	if err := validate(tableName); err != nil {
		return false, err
	}
	t, ok := s.tables.Load(tableName)
	if !ok {
		return false, nil
	}
	_, ok = t.Load(key)
	return ok, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func validate(tableName string) error {
	if tableName == "" {
		return store.NewError(store.RetCInvalidOperation, "table name must not be empty")
	}
	return nil
}
