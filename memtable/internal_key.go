package memtable

import (
	"bytes"
	"encoding/binary"
)

// ValueType tags what kind of operation a record represents. Deletion
// must sort as the smaller of the two when packed into otherwise-equal
// tags, so that a lookup key built with the larger value (TypeValue)
// sorts before any real entry sharing its sequence number.
type ValueType uint8

const (
	TypeDeletion ValueType = 0
	TypeValue    ValueType = 1
)

// tagSize is the width in bytes of the trailing (sequence, type) tag
// appended to every user key to form an internal key.
const tagSize = 8

func packTag(seq uint64, t ValueType) uint64 {
	return (seq << 8) | uint64(t)
}

func unpackTag(tag uint64) (seq uint64, t ValueType) {
	return tag >> 8, ValueType(tag & 0xff)
}

// Comparator is the pluggable strict weak order over user keys. The
// zero-value-friendly ByteComparator (plain byte-string order) is used
// whenever the caller doesn't supply one.
type Comparator interface {
	Compare(a, b []byte) int
}

// ByteComparator orders user keys by raw byte value.
type ByteComparator struct{}

func (ByteComparator) Compare(a, b []byte) int { return bytes.Compare(a, b) }

// InternalKeyComparator orders internal keys (user_key || 8-byte tag):
// first by user key under the supplied Comparator, then — for equal
// user keys — by tag in reverse, so the newest version sorts first.
type InternalKeyComparator struct {
	UserCmp Comparator
}

// User returns the underlying user-key comparator.
func (c InternalKeyComparator) User() Comparator { return c.UserCmp }

func (c InternalKeyComparator) Compare(a, b []byte) int {
	ua, ta := splitInternalKey(a)
	ub, tb := splitInternalKey(b)
	if r := c.UserCmp.Compare(ua, ub); r != 0 {
		return r
	}
	switch {
	case ta > tb:
		return -1
	case ta < tb:
		return 1
	default:
		return 0
	}
}

func splitInternalKey(internalKey []byte) (userKey []byte, tag uint64) {
	n := len(internalKey)
	userKey = internalKey[:n-tagSize]
	tag = binary.LittleEndian.Uint64(internalKey[n-tagSize:])
	return userKey, tag
}

// recordComparator is the comparator the skip list itself is built
// with: its "keys" are raw byte slices pointing at one arena record
// (a varint-prefixed internal key followed by a varint-prefixed
// value). It decodes just the leading internal key before deferring
// to InternalKeyComparator.
type recordComparator struct {
	icmp InternalKeyComparator
}

func (c recordComparator) Compare(a, b []byte) int {
	return c.icmp.Compare(decodeLengthPrefixedInternalKey(a), decodeLengthPrefixedInternalKey(b))
}

func decodeLengthPrefixedInternalKey(record []byte) []byte {
	n, sz := binary.Uvarint(record)
	return record[sz : sz+int(n)]
}

// LookupKey is a pre-encoded internal key carrying a user key and a
// query sequence number, ready to feed directly to the skip list's
// Seek. It positions at the newest version of userKey visible at or
// before seq.
type LookupKey struct {
	data     []byte
	keyStart int
}

// NewLookupKey builds a LookupKey for userKey at sequence seq.
func NewLookupKey(userKey []byte, seq uint64) *LookupKey {
	internalKeySize := len(userKey) + tagSize

	var lenBuf [binary.MaxVarintLen32]byte
	n := binary.PutUvarint(lenBuf[:], uint64(internalKeySize))

	data := make([]byte, n+internalKeySize)
	copy(data, lenBuf[:n])
	copy(data[n:], userKey)
	// TypeValue is the larger tag for an equal sequence number, so this
	// key sorts at or before any real entry with sequence <= seq.
	binary.LittleEndian.PutUint64(data[n+len(userKey):], packTag(seq, TypeValue))

	return &LookupKey{data: data, keyStart: n}
}

// MemtableKey returns the length-prefixed internal key, ready to seek
// the skip list with.
func (k *LookupKey) MemtableKey() []byte { return k.data }

// UserKey returns the raw user-key bytes.
func (k *LookupKey) UserKey() []byte { return k.data[k.keyStart : len(k.data)-tagSize] }

// Status distinguishes "nothing known about this key" (Get returns
// false) from "known to be deleted" (Get returns true with a NotFound
// status but no value).
type Status struct {
	notFound bool
	key      []byte
}

// OK returns the zero (non-error) status.
func OK() Status { return Status{} }

// NotFoundStatus returns a status reporting key as deleted.
func NotFoundStatus(key []byte) Status { return Status{notFound: true, key: key} }

// IsNotFound reports whether this status represents a tombstone.
func (s Status) IsNotFound() bool { return s.notFound }

// Key returns the key a NotFound status refers to.
func (s Status) Key() []byte { return s.key }
