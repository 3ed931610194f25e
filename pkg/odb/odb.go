package odb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

var (
	zstdEncoders = sync.Pool{New: func() any {
		e, _ := zstd.NewWriter(nil)
		return e
	}}
	zstdDecoders = sync.Pool{New: func() any {
		d, _ := zstd.NewReader(nil)
		return d
	}}
)

func compress(b []byte) ([]byte, error) {
	e := zstdEncoders.Get().(*zstd.Encoder)
	defer zstdEncoders.Put(e)
	var buf bytes.Buffer
	e.Reset(&buf)
	if _, err := e.Write(b); err != nil {
		return nil, err
	}
	if err := e.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(r io.Reader) ([]byte, error) {
	d := zstdDecoders.Get().(*zstd.Decoder)
	defer zstdDecoders.Put(d)
	if err := d.Reset(r); err != nil {
		return nil, err
	}
	return io.ReadAll(d)
}

// ODB is the merge engine's object.Backend: it reads and writes zstd-
// compressed, content-addressed objects through a WritableStorage, with an
// in-memory decoded-object cache in front.
type ODB struct {
	storage WritableStorage
	cache   *objectCache
	log     logrus.FieldLogger
}

type Option func(*ODB)

func WithCacheSizeGiB(n int64) Option {
	return func(o *ODB) {
		c, err := newObjectCache(n)
		if err == nil {
			o.cache = c
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(o *ODB) { o.log = log }
}

func New(storage WritableStorage, opts ...Option) *ODB {
	o := &ODB{storage: storage, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache, _ = newObjectCache(1)
	}
	return o
}

func (o *ODB) readDecompressed(ctx context.Context, oid hash.Hash) ([]byte, error) {
	r, err := o.storage.Open(ctx, oid)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return decompress(r)
}

func (o *ODB) writeCompressed(ctx context.Context, b []byte) (hash.Hash, error) {
	oid := hash.Of(b)
	ok, err := o.storage.Exists(ctx, oid)
	if err != nil {
		return hash.Zero, err
	}
	if ok {
		return oid, nil
	}
	compressed, err := compress(b)
	if err != nil {
		return hash.Zero, err
	}
	if err := o.storage.Put(ctx, oid, bytes.NewReader(compressed)); err != nil {
		return hash.Zero, fmt.Errorf("odb: writing object %s: %w", oid, err)
	}
	return oid, nil
}

func (o *ODB) Tree(ctx context.Context, oid hash.Hash) (*object.Tree, error) {
	if t, ok := o.cache.tree(oid); ok {
		return t, nil
	}
	b, err := o.readDecompressed(ctx, oid)
	if err != nil {
		return nil, err
	}
	t, err := object.DecodeTree(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("odb: decoding tree %s: %w", oid, err)
	}
	o.cache.storeTree(oid, t)
	return t, nil
}

func (o *ODB) Commit(ctx context.Context, oid hash.Hash) (*object.Commit, error) {
	if c, ok := o.cache.commit(oid); ok {
		return c, nil
	}
	b, err := o.readDecompressed(ctx, oid)
	if err != nil {
		return nil, err
	}
	c, err := object.DecodeCommit(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("odb: decoding commit %s: %w", oid, err)
	}
	c.Hash = oid
	o.cache.storeCommit(oid, c)
	return c, nil
}

func (o *ODB) Blob(ctx context.Context, oid hash.Hash) (*object.Blob, error) {
	b, err := o.readDecompressed(ctx, oid)
	if err != nil {
		return nil, err
	}
	return &object.Blob{Hash: oid, Size: int64(len(b))}, nil
}

func (o *ODB) WriteTree(ctx context.Context, t *object.Tree) (hash.Hash, error) {
	var buf bytes.Buffer
	if err := t.Encode(&buf); err != nil {
		return hash.Zero, err
	}
	oid, err := o.writeCompressed(ctx, buf.Bytes())
	if err != nil {
		return hash.Zero, err
	}
	o.cache.storeTree(oid, t)
	o.log.WithField("tree", oid).Debug("wrote tree object")
	return oid, nil
}

func (o *ODB) WriteCommit(ctx context.Context, c *object.Commit) (hash.Hash, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return hash.Zero, err
	}
	oid, err := o.writeCompressed(ctx, buf.Bytes())
	if err != nil {
		return hash.Zero, err
	}
	c.Hash = oid
	o.cache.storeCommit(oid, c)
	return oid, nil
}

func (o *ODB) WriteBlob(ctx context.Context, content []byte) (hash.Hash, error) {
	return o.writeCompressed(ctx, content)
}

// ReadBlob returns the raw (decompressed) content of a blob, used by content
// merge collaborators that need the actual bytes rather than just metadata.
func (o *ODB) ReadBlob(ctx context.Context, oid hash.Hash) ([]byte, error) {
	return o.readDecompressed(ctx, oid)
}

func (o *ODB) Close() error {
	return o.storage.Close()
}

var _ object.Backend = (*ODB)(nil)
