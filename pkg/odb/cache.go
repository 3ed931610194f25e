package odb

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/threestage/mergetree/pkg/hash"
	"github.com/threestage/mergetree/pkg/object"
)

// objectCache is a read-through cache of decoded objects in front of a
// Backend, keyed directly by hash since unlike the reference server this
// engine has no multi-repository namespace to qualify the key with.
type objectCache struct {
	c *ristretto.Cache[hash.Hash, any]
}

func newObjectCache(maxCostGiB int64) (*objectCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[hash.Hash, any]{
		NumCounters: 1e6,
		MaxCost:     maxCostGiB << 30,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &objectCache{c: c}, nil
}

func (o *objectCache) tree(oid hash.Hash) (*object.Tree, bool) {
	v, ok := o.c.Get(oid)
	if !ok {
		return nil, false
	}
	t, ok := v.(*object.Tree)
	return t, ok
}

func (o *objectCache) commit(oid hash.Hash) (*object.Commit, bool) {
	v, ok := o.c.Get(oid)
	if !ok {
		return nil, false
	}
	c, ok := v.(*object.Commit)
	return c, ok
}

func (o *objectCache) storeTree(oid hash.Hash, t *object.Tree) {
	o.c.Set(oid, t, 1)
}

func (o *objectCache) storeCommit(oid hash.Hash, c *object.Commit) {
	o.c.Set(oid, c, 1)
}
