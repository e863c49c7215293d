package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "pdf-quiz-rag/internal/errors"
)

// Validator is implemented by schema types that check their own invariants.
type Validator interface {
	Validate() error
}

// Coerce turns loosely typed model output into a *T. A value that already
// is a T (or *T) is accepted as-is. Text (string, []byte, json.RawMessage)
// is parsed as JSON and validated. Anything else is a model output error.
func Coerce[T any](raw any) (*T, error) {
	switch v := raw.(type) {
	case *T:
		if v == nil {
			return nil, apperrors.ErrModelOutput.WithCause(fmt.Errorf("nil %T", raw))
		}
		return v, nil
	case T:
		return &v, nil
	case string:
		return decode[T]([]byte(v))
	case json.RawMessage:
		return decode[T](v)
	case []byte:
		return decode[T](v)
	default:
		return nil, apperrors.ErrModelOutput.WithCause(fmt.Errorf("unsupported output type %T", raw))
	}
}

func decode[T any](data []byte) (*T, error) {
	data = stripFences(data)
	if len(data) == 0 {
		return nil, apperrors.ErrModelOutput.WithCause(fmt.Errorf("empty output"))
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, apperrors.ErrModelOutput.WithCause(err)
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, apperrors.ErrModelOutput.WithCause(err)
		}
	}
	return &out, nil
}

// stripFences removes a surrounding markdown code fence such as ```json ... ```
func stripFences(data []byte) []byte {
	data = bytes.TrimSpace(data)
	if !bytes.HasPrefix(data, []byte("```")) {
		return data
	}
	data = data[3:]
	if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
		data = data[nl+1:]
	} else {
		return nil
	}
	data = bytes.TrimSpace(data)
	data = bytes.TrimSuffix(data, []byte("```"))
	return bytes.TrimSpace(data)
}
