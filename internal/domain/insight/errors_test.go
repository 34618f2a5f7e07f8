package insight

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-insight/internal/domain/schema"
)

func TestRequestFailed_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("gateway: %w", Transport(errors.New("connection reset")))

	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestInvalidResponse_CarriesPayloadAndViolations(t *testing.T) {
	cause := &schema.ValidationError{Violations: []schema.Violation{{Path: "$.score", Reason: "required field is missing"}}}
	err := InvalidResponse([]byte(`{"other":1}`), cause)

	var rf *RequestFailed
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, `{"other":1}`, string(rf.Payload))
	assert.Len(t, rf.Violations, 1)
	assert.False(t, rf.Retryable())
}

func TestClassify(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, KindCancelled, KindOf(Classify(ctx, errors.New("read: use of closed connection"))))
	assert.Equal(t, KindTransport, KindOf(Classify(context.Background(), context.DeadlineExceeded)))
	assert.Equal(t, KindInvalidResponse, KindOf(Classify(context.Background(), InvalidResponse(nil, errors.New("x")))))
	assert.NoError(t, Classify(context.Background(), nil))
}

func TestRequestValidate(t *testing.T) {
	s := schema.Object(map[string]*schema.Schema{"score": schema.Of(schema.TypeNumber)})

	assert.ErrorIs(t, Request{Prompt: "  ", Schema: s}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, Request{Prompt: "scan", Schema: schema.Of(schema.TypeArray)}.Validate(), ErrInvalidRequest)
	assert.NoError(t, Request{Prompt: "scan", Schema: s}.Validate())
}

func TestAttempts(t *testing.T) {
	ctx := WithAttempts(context.Background())
	CountAttempt(ctx)
	CountAttempt(ctx)
	assert.Equal(t, 2, AttemptsFrom(ctx))
	assert.Equal(t, 0, AttemptsFrom(context.Background()))
}
