package repository

import (
	"github.com/okian/immersivescaler/internal/domain/bonemap"
	"github.com/okian/immersivescaler/pkg/logger"
)

// Option applies a configuration option to the FileStore.
type Option func(*FileStore)

// WithResolver sets the resolver that binds roles on load.
func WithResolver(r *bonemap.Resolver) Option {
	return func(s *FileStore) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}
