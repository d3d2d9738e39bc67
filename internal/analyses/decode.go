package analyses

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"sealdeal-backend/internal/llm"
)

var validate = validator.New()

// SchemaError reports a model response that does not match the analysis schema.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("analysis response failed schema validation: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Decode extracts the JSON object from raw model text and decodes it strictly.
// Unknown fields, trailing data and an unrecognized recommendation all fail.
func Decode(raw string) (Result, error) {
	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return Result{}, &SchemaError{Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(obj)))
	dec.DisallowUnknownFields()
	var res Result
	if err := dec.Decode(&res); err != nil {
		return Result{}, &SchemaError{Err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Result{}, &SchemaError{Err: errors.New("unexpected data after JSON object")}
	}
	if err := validate.Struct(res); err != nil {
		return Result{}, &SchemaError{Err: err}
	}
	return res, nil
}
