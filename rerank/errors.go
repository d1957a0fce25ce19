package rerank

import "errors"

var (
	// ErrInvalidOptions is returned when rerank options fail validation.
	ErrInvalidOptions = errors.New("invalid rerank options")

	// ErrUnknownOption is returned by OptionsFromMap for keys it does not recognise.
	ErrUnknownOption = errors.New("unknown rerank option")
)
