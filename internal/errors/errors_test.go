package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInputMessage(t *testing.T) {
	err := InvalidInput("missing field %q", "commands")
	assert.Equal(t, `Invalid input: missing field "commands"`, err.Error())
	assert.Equal(t, 400, err.HTTPStatus())
	assert.True(t, Is(err, KindInvalidInput))
}

func TestPrinterErrorWrapsCause(t *testing.T) {
	cause := errors.New("bulk write timed out")
	err := Printer(cause, "write failed")
	assert.Equal(t, "printer error: write failed", err.Error())
	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, 500, err.HTTPStatus())
}

func TestInternalErrorHTTPStatus(t *testing.T) {
	err := Internal(nil, "unexpected nil transport")
	assert.Equal(t, 500, err.HTTPStatus())
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestKindOfNonAppError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestCapturesStack(t *testing.T) {
	err := Internal(nil, "boom")
	assert.NotEmpty(t, err.Stack)
	assert.Contains(t, err.GetStack(), "TestCapturesStack")
}
