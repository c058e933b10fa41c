package tracing

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

const defaultShutdownTimeout = 5 * time.Second

// StartSegment starts a segment on the transaction carried by ctx.
// It is safe to call when ctx has no transaction.
func StartSegment(ctx context.Context, name string) *newrelic.Segment {
	return newrelic.FromContext(ctx).StartSegment(name)
}

// NoticeError records err on the transaction carried by ctx, if any
func NoticeError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if txn := newrelic.FromContext(ctx); txn != nil {
		txn.NoticeError(err)
	}
}

// NewContext attaches a transaction to ctx
func NewContext(ctx context.Context, txn *newrelic.Transaction) context.Context {
	if txn == nil {
		return ctx
	}
	return newrelic.NewContext(ctx, txn)
}
