package classify

import "time"

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithMaxTags caps the number of tags requested from the Completer.
func WithMaxTags(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxTags = n
		}
	}
}

// WithMaxPaths caps the number of changed paths sent to the Completer.
func WithMaxPaths(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.maxPaths = n
		}
	}
}

// WithTimeout bounds each Completer call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithVocabulary sets the style-guide vocabulary.
func WithVocabulary(v *Vocabulary) Option {
	return func(c *Classifier) {
		if v != nil {
			c.vocab = v
		}
	}
}
