// (c) 2021, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package blocklog stores irreversible blocks by id and by number.
package blocklog

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"

	"github.com/ava-labs/witnessvm/protocol"
)

const blockCacheSize = 2048

var (
	// These are prefixes for db keys.
	// Each index lives under its own prefix.
	blockPrefix     = []byte("block")
	heightPrefix    = []byte("height")
	singletonPrefix = []byte("singleton")

	headKey = []byte("head")

	ErrNotFound     = errors.New("block not found")
	ErrNotNext      = errors.New("block does not extend the log head")
	ErrEmpty        = errors.New("block log is empty")
	errWrongVersion = errors.New("wrong codec version")

	_ Log = (*blockLog)(nil)
)

// Log is an append only store of irreversible blocks. Only the head may be
// removed.
type Log interface {
	// Append stores [blk], which must be the block after the head.
	Append(blk *protocol.SignedBlock) error
	ReadByNumber(num uint32) (*protocol.SignedBlock, error)
	ReadByID(blkID ids.ID) (*protocol.SignedBlock, error)
	// Head returns the last appended block, or ErrEmpty.
	Head() (*protocol.SignedBlock, error)
	// PopHead removes and returns the head.
	PopHead() (*protocol.SignedBlock, error)
	Close() error
}

type cachedBlock struct {
	blk *protocol.SignedBlock
}

func (*cachedBlock) Size() (uint64, error) { return 1, nil }

type blockLog struct {
	lock sync.Mutex

	baseDB      *versiondb.Database
	blockDB     database.Database
	heightDB    database.Database
	singletonDB database.Database

	cache *lru.Cache[ids.ID, *cachedBlock]

	head    *protocol.SignedBlock
	headID  ids.ID
	headNum uint32
}

// New opens the block log stored in [db].
func New(db database.Database) (Log, error) {
	baseDB := versiondb.New(db)
	l := &blockLog{
		baseDB:      baseDB,
		blockDB:     prefixdb.New(blockPrefix, baseDB),
		heightDB:    prefixdb.New(heightPrefix, baseDB),
		singletonDB: prefixdb.New(singletonPrefix, baseDB),
		cache:       lru.NewCache[ids.ID, *cachedBlock](blockCacheSize),
	}

	headIDBytes, err := l.singletonDB.Get(headKey)
	switch {
	case err == database.ErrNotFound:
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read block log head: %w", err)
	}
	headID, err := ids.ToID(headIDBytes)
	if err != nil {
		return nil, err
	}
	if l.head, err = l.readByID(headID); err != nil {
		return nil, fmt.Errorf("failed to load block log head %s: %w", headID, err)
	}
	l.headID = headID
	l.headNum = l.head.Num()
	return l, nil
}

func (l *blockLog) Append(blk *protocol.SignedBlock) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if blk.Previous != l.headID || blk.Num() != l.headNum+1 {
		return fmt.Errorf("%w: block %d builds on %s, head is %s", ErrNotNext, blk.Num(), blk.Previous, l.headID)
	}
	blkID, err := blk.ID()
	if err != nil {
		return err
	}
	bytes, err := protocol.Codec.Marshal(protocol.CodecVersion, blk)
	if err != nil {
		return fmt.Errorf("failed to marshal block %s: %w", blkID, err)
	}
	num := blk.Num()

	defer l.baseDB.Abort()
	if err := l.blockDB.Put(blkID[:], bytes); err != nil {
		return err
	}
	if err := l.heightDB.Put(database.PackUInt64(uint64(num)), blkID[:]); err != nil {
		return err
	}
	if err := l.singletonDB.Put(headKey, blkID[:]); err != nil {
		return err
	}
	if err := l.baseDB.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %s: %w", blkID, err)
	}

	_, _ = l.cache.Put(blkID, &cachedBlock{blk: blk})
	l.head, l.headID, l.headNum = blk, blkID, num
	return nil
}

func (l *blockLog) ReadByNumber(num uint32) (*protocol.SignedBlock, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	idBytes, err := l.heightDB.Get(database.PackUInt64(uint64(num)))
	if err == database.ErrNotFound {
		return nil, fmt.Errorf("%w: number %d", ErrNotFound, num)
	}
	if err != nil {
		return nil, err
	}
	blkID, err := ids.ToID(idBytes)
	if err != nil {
		return nil, err
	}
	return l.readByID(blkID)
}

func (l *blockLog) ReadByID(blkID ids.ID) (*protocol.SignedBlock, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.readByID(blkID)
}

func (l *blockLog) readByID(blkID ids.ID) (*protocol.SignedBlock, error) {
	cached, err := l.cache.Get(blkID)
	switch {
	case err == nil:
		return cached.blk, nil
	case !errors.Is(err, cache.ErrElementNotFound):
		return nil, err
	}

	bytes, err := l.blockDB.Get(blkID[:])
	if err == database.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, blkID)
	}
	if err != nil {
		return nil, err
	}
	blk := &protocol.SignedBlock{}
	version, err := protocol.Codec.Unmarshal(bytes, blk)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal block %s: %w", blkID, err)
	}
	if version != protocol.CodecVersion {
		return nil, errWrongVersion
	}
	_, _ = l.cache.Put(blkID, &cachedBlock{blk: blk})
	return blk, nil
}

func (l *blockLog) Head() (*protocol.SignedBlock, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.head == nil {
		return nil, ErrEmpty
	}
	return l.head, nil
}

func (l *blockLog) PopHead() (*protocol.SignedBlock, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.head == nil {
		return nil, ErrEmpty
	}
	popped, poppedID := l.head, l.headID

	var (
		prev   *protocol.SignedBlock
		prevID = popped.Previous
	)
	if l.headNum > 1 {
		var err error
		if prev, err = l.readByID(prevID); err != nil {
			return nil, err
		}
	}

	defer l.baseDB.Abort()
	if err := l.blockDB.Delete(poppedID[:]); err != nil {
		return nil, err
	}
	if err := l.heightDB.Delete(database.PackUInt64(uint64(l.headNum))); err != nil {
		return nil, err
	}
	if prev == nil {
		if err := l.singletonDB.Delete(headKey); err != nil {
			return nil, err
		}
	} else if err := l.singletonDB.Put(headKey, prevID[:]); err != nil {
		return nil, err
	}
	if err := l.baseDB.Commit(); err != nil {
		return nil, err
	}

	l.cache.Delete(poppedID)
	l.head, l.headID = prev, prevID
	if prev == nil {
		l.headID, l.headNum = ids.Empty, 0
	} else {
		l.headNum--
	}
	return popped, nil
}

func (l *blockLog) Close() error {
	return l.baseDB.Close()
}
