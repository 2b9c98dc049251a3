package loader

import "github.com/sirupsen/logrus"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithWorkers sets the maximum number of files LoadAll decodes concurrently. Values < 1 are ignored.
//
// Parameters:
//   - n: the worker count (default 4)
//
// Returns:
//   - LoaderBuilderOption: a function that applies the workers option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		if n >= 1 {
			l.workers = n
		}
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
//
// Parameters:
//   - logger: the logger to use
//
// Returns:
//   - LoaderBuilderOption: a function that applies the logger option to a loader
func WithLogger(logger logrus.FieldLogger) LoaderBuilderOption {
	return func(l *loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithSetFile pre-populates the cache.
//
// Parameters:
//   - key: the cache key
//   - f: the file to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the cache option to a loader
func WithSetFile(key string, f *SetFile) LoaderBuilderOption {
	return func(l *loader) {
		l.fileCache[key] = f
	}
}
