package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gorm.io/record/query"
)

// Connection mock of query.Connection
type Connection struct {
	mock.Mock
}

func (_m *Connection) Select(ctx context.Context, sql string, bindings []interface{}) ([]map[string]interface{}, error) {
	ret := _m.Called(ctx, sql, bindings)

	var r0 []map[string]interface{}
	if rf, ok := ret.Get(0).(func(context.Context, string, []interface{}) []map[string]interface{}); ok {
		r0 = rf(ctx, sql, bindings)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]map[string]interface{})
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, []interface{}) error); ok {
		r1 = rf(ctx, sql, bindings)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *Connection) Affecting(ctx context.Context, sql string, bindings []interface{}) (int64, error) {
	ret := _m.Called(ctx, sql, bindings)

	var r0 int64
	if rf, ok := ret.Get(0).(func(context.Context, string, []interface{}) int64); ok {
		r0 = rf(ctx, sql, bindings)
	} else {
		r0 = ret.Get(0).(int64)
	}

	return r0, ret.Error(1)
}

func (_m *Connection) InsertGetID(ctx context.Context, sql string, bindings []interface{}, sequence string) (interface{}, error) {
	ret := _m.Called(ctx, sql, bindings, sequence)
	return ret.Get(0), ret.Error(1)
}

func (_m *Connection) Dialector() query.Dialector {
	ret := _m.Called()

	var r0 query.Dialector
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(query.Dialector)
	}

	return r0
}

var _ query.Connection = (*Connection)(nil)
