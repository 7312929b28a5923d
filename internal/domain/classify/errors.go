package classify

import "errors"

// Sentinel errors for this package.
var (
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrVocabularyLoad        = errors.New("vocabulary load failed")
	ErrVocabularyPersist     = errors.New("vocabulary persist failed")
)
