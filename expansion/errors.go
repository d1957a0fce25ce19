package expansion

import "errors"

var (
	// ErrEmptyCorpus is returned when the index holds no documents.
	ErrEmptyCorpus = errors.New("expansion corpus is empty")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid expansion config")

	// ErrStoreRequired is returned when a Source is created without a store.
	ErrStoreRequired = errors.New("embedding store required")
)
