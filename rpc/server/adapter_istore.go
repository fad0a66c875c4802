package server

import (
	"errors"

	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, store store.IStore) *common.Message {
	return DispatchUnary(req, store)
}

// DispatchUnary executes a point storage request and returns its single response.
// Reads return the requested values, writes the previous values (an empty value
// if there was none), existence checks bool values.
func DispatchUnary(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(req.MsgType, common.NewError(common.KindInternal, "store is nil"))
	}

	t := req.MsgType

	switch t {
	case common.MsgTHget:
		val, ok, err := s.Get(req.Table, req.Key)
		if err != nil {
			return storageError(t, err)
		}
		if !ok {
			return common.NewErrorResponse(t, common.NewError(common.KindNotFound, "table %s, key %s", req.Table, req.Key))
		}
		return common.NewValuesResponse(t, val)

	case common.MsgTHgetall:
		pairs, err := s.GetAll(req.Table)
		if err != nil {
			return storageError(t, err)
		}
		return common.NewPairsResponse(t, pairs)

	case common.MsgTHmget:
		values := make([]common.Value, 0, len(req.Keys))
		for _, key := range req.Keys {
			val, _, err := s.Get(req.Table, key)
			if err != nil {
				return storageError(t, err)
			}
			values = append(values, val)
		}
		return common.NewValuesResponse(t, values...)

	case common.MsgTHset, common.MsgTHmset:
		if t == common.MsgTHset && len(req.Pairs) != 1 {
			return common.NewErrorResponse(t, common.NewError(common.KindInvalidCommand, "hset expects exactly one pair, got %d", len(req.Pairs)))
		}
		values := make([]common.Value, 0, len(req.Pairs))
		for _, pair := range req.Pairs {
			old, _, err := s.Set(req.Table, pair.Key, pair.Value)
			if err != nil {
				return storageError(t, err)
			}
			values = append(values, old)
		}
		return common.NewValuesResponse(t, values...)

	case common.MsgTHdel:
		old, _, err := s.Delete(req.Table, req.Key)
		if err != nil {
			return storageError(t, err)
		}
		return common.NewValuesResponse(t, old)

	case common.MsgTHmdel:
		values := make([]common.Value, 0, len(req.Keys))
		for _, key := range req.Keys {
			old, _, err := s.Delete(req.Table, key)
			if err != nil {
				return storageError(t, err)
			}
			values = append(values, old)
		}
		return common.NewValuesResponse(t, values...)

	case common.MsgTHexist:
		ok, err := s.Has(req.Table, req.Key)
		if err != nil {
			return storageError(t, err)
		}
		return common.NewValuesResponse(t, common.BoolValue(ok))

	case common.MsgTHmexist:
		values := make([]common.Value, 0, len(req.Keys))
		for _, key := range req.Keys {
			ok, err := s.Has(req.Table, key)
			if err != nil {
				return storageError(t, err)
			}
			values = append(values, common.BoolValue(ok))
		}
		return common.NewValuesResponse(t, values...)

	default:
		return common.NewErrorResponse(t, common.NewError(common.KindInvalidCommand, "unsupported message type: %s", t))
	}
}

// storageError converts an error of the store into an error response
func storageError(t common.MessageType, err error) *common.Message {
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.Code == store.RetCInvalidOperation {
		return common.NewErrorResponse(t, common.NewError(common.KindInvalidCommand, "%s", storeErr.Msg))
	}
	return common.NewErrorResponse(t, common.NewError(common.KindStorageError, "%v", err))
}
