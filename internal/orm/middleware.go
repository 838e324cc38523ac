package orm

import (
	"context"
	"time"
)

// OperationType represents different types of database operations
type OperationType string

const (
	OpInsert    OperationType = "insert"
	OpFind      OperationType = "find"
	OpCount     OperationType = "count"
	OpUpdate    OperationType = "update"
	OpDelete    OperationType = "delete"
	OpInnerJoin OperationType = "inner_join"
	OpColumns   OperationType = "columns"
)

// MiddlewareContext contains information passed to middleware. Duration and
// Error are filled in once the wrapped call returns.
type MiddlewareContext struct {
	Operation OperationType
	TableName string
	Query     string
	Args      []interface{}
	Error     error
	StartTime time.Time
	Duration  time.Duration
	Context   context.Context
}

// QueryMiddlewareFunc represents one step of the middleware chain
type QueryMiddlewareFunc func(ctx *MiddlewareContext) error

// QueryMiddleware wraps every statement the store executes
type QueryMiddleware func(next QueryMiddlewareFunc) QueryMiddlewareFunc

// middlewareManager manages database middleware
type middlewareManager struct {
	middleware []QueryMiddleware
}

func (mm *middlewareManager) add(middleware QueryMiddleware) *middlewareManager {
	next := &middlewareManager{}
	if mm != nil {
		next.middleware = append(next.middleware, mm.middleware...)
	}
	next.middleware = append(next.middleware, middleware)
	return next
}

func (mm *middlewareManager) execute(ctx *MiddlewareContext, finalFunc QueryMiddlewareFunc) error {
	var handler QueryMiddlewareFunc = func(mc *MiddlewareContext) error {
		err := finalFunc(mc)
		mc.Duration = time.Since(mc.StartTime)
		mc.Error = err
		return err
	}

	if mm != nil {
		for i := len(mm.middleware) - 1; i >= 0; i-- {
			handler = mm.middleware[i](handler)
		}
	}

	return handler(ctx)
}
