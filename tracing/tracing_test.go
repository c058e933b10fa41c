package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	assert.Nil(t, tracer.Application())
	txn := tracer.StartTransaction("job")
	assert.Nil(t, txn)

	assert.NotPanics(t, func() {
		tracer.RecordError(txn, errors.New("x"))
		tracer.AddAttribute(txn, "k", 1)
		tracer.EndTransaction(txn)
		tracer.Close()
	})
}

func TestSegmentsWithoutTransaction(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		StartSegment(ctx, "work").End()
		NoticeError(ctx, errors.New("x"))
	})
	assert.Equal(t, ctx, NewContext(ctx, nil))
}
