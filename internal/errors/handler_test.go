package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesType(t *testing.T) {
	err := fmt.Errorf("generate: %w", ErrNotIngested.WithCause(stderrors.New("collection \"x\"")))

	assert.True(t, stderrors.Is(err, ErrNotIngested))
	assert.False(t, stderrors.Is(err, ErrDocumentOpen))
	assert.Equal(t, TypeNotIngested, TypeOf(err))
	assert.Equal(t, "", TypeOf(stderrors.New("plain")))
}

func TestWithMessageKeepsCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := ErrConfiguration.WithCause(cause).WithMessage("Missing prompt")

	assert.Equal(t, "Missing prompt: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Invalid configuration", ErrConfiguration.Message, "sentinel is not mutated")
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrDocumentOpen, http.StatusBadRequest},
		{ErrNotIngested, http.StatusNotFound},
		{ErrModelOutput, http.StatusBadGateway},
		{ErrIndexQuery, http.StatusBadGateway},
		{ErrEmbedding, http.StatusBadGateway},
		{ErrConfiguration, http.StatusInternalServerError},
		{stderrors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestHandlerConvert(t *testing.T) {
	err := ErrModelOutput.WithCause(stderrors.New("unexpected EOF"))

	detailed := NewHandler(true).Convert(err)
	assert.Equal(t, http.StatusBadGateway, detailed.CodeField)
	assert.Equal(t, "Model output does not match schema", detailed.ErrorField)
	assert.Contains(t, detailed.ReasonField, "unexpected EOF")

	secure := NewHandler(false).Convert(err)
	assert.Empty(t, secure.ReasonField)

	unknown := NewHandler(false).Convert(stderrors.New("secret path /etc/x"))
	assert.Equal(t, "An internal error occurred", unknown.ErrorField)
	assert.Equal(t, http.StatusInternalServerError, unknown.CodeField)
}
