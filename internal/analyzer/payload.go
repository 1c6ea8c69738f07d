package analyzer

import (
	"errors"
	"unicode"
	"unicode/utf8"

	"github.com/ibeckermayer/tganalytics/internal/types"
)

// ErrorPayload is the uniform failure shape handed to front adapters
type ErrorPayload struct {
	Error       string `json:"error"`
	RawResponse string `json:"raw_response,omitempty"`
}

// Failure converts any analyzer error into its payload. Model output that
// could not be parsed is returned alongside the message.
func Failure(err error) ErrorPayload {
	if err == nil {
		return ErrorPayload{}
	}
	p := ErrorPayload{Error: capitalize(err.Error())}

	var malformed *types.MalformedOutputError
	if errors.As(err, &malformed) {
		p.RawResponse = malformed.Raw
	}
	return p
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
