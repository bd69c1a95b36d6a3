// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"

	"github.com/ava-labs/witnessvm/protocol"
)

var errWrongVersion = errors.New("wrong codec version")

// Table stores codec encoded values of type V under a one byte prefix.
type Table[V any] struct {
	prefix byte
}

func NewTable[V any](prefix byte) Table[V] { return Table[V]{prefix: prefix} }

func (t Table[V]) key(k []byte) []byte {
	out := make([]byte, 1+len(k))
	out[0] = t.prefix
	copy(out[1:], k)
	return out
}

// Get returns database.ErrNotFound when the key is absent.
func (t Table[V]) Get(db database.KeyValueReader, k []byte) (*V, error) {
	raw, err := db.Get(t.key(k))
	if err != nil {
		return nil, err
	}
	return decode[V](raw)
}

func (t Table[V]) Has(db database.KeyValueReader, k []byte) (bool, error) {
	return db.Has(t.key(k))
}

func (t Table[V]) Put(db database.KeyValueWriter, k []byte, v *V) error {
	raw, err := protocol.Codec.Marshal(protocol.CodecVersion, v)
	if err != nil {
		return fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return db.Put(t.key(k), raw)
}

func (t Table[V]) Delete(db database.Database, k []byte) error {
	return db.Delete(t.key(k))
}

// Iterate visits values in key order starting at [start]. Returning false from
// [f] stops the iteration. [f] must not write to [db].
func (t Table[V]) Iterate(db database.Iteratee, start []byte, f func(k []byte, v *V) (bool, error)) error {
	prefix := []byte{t.prefix}
	it := db.NewIteratorWithStartAndPrefix(t.key(start), prefix)
	defer it.Release()

	for it.Next() {
		v, err := decode[V](it.Value())
		if err != nil {
			return err
		}
		cont, err := f(it.Key()[1:], v)
		if err != nil || !cont {
			return err
		}
	}
	return it.Error()
}

func decode[V any](raw []byte) (*V, error) {
	v := new(V)
	version, err := protocol.Codec.Unmarshal(raw, v)
	if err != nil {
		return nil, err
	}
	if version != protocol.CodecVersion {
		return nil, errWrongVersion
	}
	return v, nil
}

// Index is an ordered set of keys under a one byte prefix. It backs expiry
// queues, where keys start with a big endian timestamp.
type Index struct {
	prefix byte
}

func NewIndex(prefix byte) Index { return Index{prefix: prefix} }

func (x Index) key(k []byte) []byte {
	out := make([]byte, 1+len(k))
	out[0] = x.prefix
	copy(out[1:], k)
	return out
}

func (x Index) Put(db database.KeyValueWriter, k []byte) error { return db.Put(x.key(k), nil) }

func (x Index) Delete(db database.Database, k []byte) error { return db.Delete(x.key(k)) }

func (x Index) Has(db database.KeyValueReader, k []byte) (bool, error) { return db.Has(x.key(k)) }

// Collect returns up to [limit] keys in order for which [keep] returns true,
// stopping at the first key for which it returns false. A zero limit means no
// limit. The returned keys may be deleted by the caller.
func (x Index) Collect(db database.Iteratee, prefix []byte, limit int, keep func(k []byte) bool) ([][]byte, error) {
	it := db.NewIteratorWithPrefix(x.key(prefix))
	defer it.Release()

	var out [][]byte
	for it.Next() {
		k := it.Key()[1:]
		if !keep(k) {
			break
		}
		out = append(out, append([]byte(nil), k...))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, it.Error()
}

// Keys builds an index key from its parts. Integers are encoded big endian and
// strings are zero terminated, so byte order matches the order of the parts.
// Strings must not contain a zero byte.
func Keys(parts ...interface{}) []byte {
	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case uint32:
			out = binary.BigEndian.AppendUint32(out, v)
		case uint64:
			out = binary.BigEndian.AppendUint64(out, v)
		case uint16:
			out = binary.BigEndian.AppendUint16(out, v)
		case string:
			out = append(out, v...)
			out = append(out, 0)
		case []byte:
			out = append(out, v...)
		default:
			panic(fmt.Sprintf("unsupported key part %T", p))
		}
	}
	return out
}

// Uint32At reads a big endian uint32 at [offset] of a key built by Keys.
func Uint32At(k []byte, offset int) uint32 { return binary.BigEndian.Uint32(k[offset:]) }

// StringAt reads a zero terminated string at [offset] of a key built by Keys
// and returns it with the offset following it.
func StringAt(k []byte, offset int) (string, int) {
	n := bytes.IndexByte(k[offset:], 0)
	if n < 0 {
		return string(k[offset:]), len(k)
	}
	return string(k[offset : offset+n]), offset + n + 1
}
