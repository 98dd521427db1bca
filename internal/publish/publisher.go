// Package publish archives and catalogs files as the writer closes them.
package publish

import (
	"context"
	"path"

	"go.uber.org/zap"

	"github.com/martian17/parquet-generator/internal/errors"
	"github.com/martian17/parquet-generator/internal/manifest"
	"github.com/martian17/parquet-generator/internal/partition"
	"github.com/martian17/parquet-generator/internal/storage"
)

// Publisher uploads each closed file to object storage, then registers it in
// the manifest catalog. Either collaborator may be nil.
type Publisher struct {
	storage storage.ObjectStorage
	catalog manifest.Catalog
	prefix  string
	logger  *zap.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithStorage archives files to s under prefix/label/.
func WithStorage(s storage.ObjectStorage, prefix string) Option {
	return func(p *Publisher) {
		p.storage = s
		p.prefix = prefix
	}
}

// WithCatalog registers files in c.
func WithCatalog(c manifest.Catalog) Option {
	return func(p *Publisher) { p.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// New creates a Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether the publisher has anything to do.
func (p *Publisher) Enabled() bool {
	return p.storage != nil || p.catalog != nil
}

// FileClosed implements writer.FileObserver.
func (p *Publisher) FileClosed(ctx context.Context, info *partition.FileInfo) error {
	var objectPath string
	if p.storage != nil {
		objectPath = storage.ObjectPath(path.Join(p.prefix, info.Label), info.Path)
		etag, err := p.storage.Upload(ctx, info.Path, objectPath)
		if err != nil {
			return errors.NewIOError(errors.CodeUploadFailed, "failed to archive file", info.Path, err)
		}
		p.logger.Debug("archived file",
			zap.String("path", info.Path),
			zap.String("object", objectPath),
			zap.String("etag", etag),
		)
	}

	if p.catalog != nil {
		if err := p.catalog.RegisterFile(ctx, info, objectPath); err != nil {
			return errors.NewIOError(errors.CodeCatalogFailed, "failed to register file", info.Path, err)
		}
		p.logger.Debug("registered file", zap.String("path", info.Path))
	}
	return nil
}
