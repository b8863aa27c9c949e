// Package bind decodes and validates a JSON request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/shashiranjanraj/offersync/config"
	"github.com/shashiranjanraj/offersync/pkg/validate"
)

var (
	// ErrTooLarge is returned when the body exceeds MAX_BODY_BYTES.
	ErrTooLarge = errors.New("bind: request body too large")
	// ErrMalformed is returned when the body is not a JSON object of the
	// expected shape.
	ErrMalformed = errors.New("bind: malformed JSON body")
)

// JSON decodes r.Body into dest and validates it. The body is capped at
// config.MaxBodyBytes. Validation failures come back as errs with a nil
// error; decoding problems as ErrTooLarge or ErrMalformed.
func JSON(w http.ResponseWriter, r *http.Request, dest interface{}) (validate.Errors, error) {
	return JSONLimit(w, r, dest, config.MaxBodyBytes())
}

// JSONLimit is JSON with an explicit size limit.
func JSONLimit(w http.ResponseWriter, r *http.Request, dest interface{}, limit int64) (validate.Errors, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w (max %d bytes)", ErrTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}
