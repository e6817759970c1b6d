// Package memtable implements the in-memory, ordered write buffer of a
// log-structured key-value store. Each insertion encodes a
// (sequence, type, user_key, value) tuple into one contiguous record
// in an arena and indexes a pointer to that record in an arena-backed
// skip list (internal/skiplist), ordered so that newer versions of a
// user key always precede older ones.
package memtable

import (
	"encoding/binary"
	"sync/atomic"

	"memtable-core/internal/arena"
	"memtable-core/internal/skiplist"
)

// Memtable wraps one skip list whose keys are raw byte records encoded
// per recordComparator, backed by one arena. Reference counted:
// storage and arena stay alive while the count is > 0. The initial
// count is 0 — the creator must Ref before any other use.
type Memtable struct {
	arena *arena.Arena
	list  *skiplist.List[[]byte]
	icmp  InternalKeyComparator
	refs  atomic.Int32
}

// New constructs a Memtable with reference count 0. cmp is the user
// comparator; a nil cmp defaults to byte-lexicographic order.
func New(cmp Comparator) *Memtable {
	if cmp == nil {
		cmp = ByteComparator{}
	}
	icmp := InternalKeyComparator{UserCmp: cmp}
	a := arena.New()
	return &Memtable{
		arena: a,
		list:  skiplist.New[[]byte](a, recordComparator{icmp}),
		icmp:  icmp,
	}
}

// Ref increments the reference count.
func (m *Memtable) Ref() { m.refs.Add(1) }

// Unref decrements the reference count. At zero, the Memtable's
// storage and arena become eligible for collection; any further use
// of this Memtable or of outstanding iterators is undefined behavior.
func (m *Memtable) Unref() {
	if m.refs.Add(-1) == 0 {
		m.list = nil
		m.arena = nil
	}
}

func (m *Memtable) checkAlive() {
	if m.list == nil {
		panic("memtable: use after final Unref")
	}
}

// Add inserts one (sequence, type, user_key, value) tuple. Callers are
// expected to assign strictly increasing sequence numbers, which makes
// the resulting internal key unique; no duplicate check is performed.
func (m *Memtable) Add(seq uint64, t ValueType, userKey, value []byte) {
	m.checkAlive()

	internalKeySize := len(userKey) + tagSize
	valSize := len(value)

	var lenBuf [binary.MaxVarintLen32]byte
	keyLenN := binary.PutUvarint(lenBuf[:], uint64(internalKeySize))
	var valLenBuf [binary.MaxVarintLen32]byte
	valLenN := binary.PutUvarint(valLenBuf[:], uint64(valSize))

	encodedLen := keyLenN + internalKeySize + valLenN + valSize
	buf := m.arena.Allocate(encodedLen)

	off := copy(buf, lenBuf[:keyLenN])
	off += copy(buf[off:], userKey)
	binary.LittleEndian.PutUint64(buf[off:], packTag(seq, t))
	off += tagSize
	off += copy(buf[off:], valLenBuf[:valLenN])
	copy(buf[off:], value)

	m.list.Insert(buf)
}

// Get probes the memtable for lookupKey's user key. It returns:
//   - (nil, _, false) if the memtable has nothing about this key;
//   - (nil, NotFoundStatus(...), true) if the newest entry for this key
//     is a deletion;
//   - (value, OK(), true) if the newest entry is a live value.
func (m *Memtable) Get(lookupKey *LookupKey) ([]byte, Status, bool) {
	m.checkAlive()

	it := m.list.NewIterator()
	it.Seek(lookupKey.MemtableKey())
	if !it.Valid() {
		return nil, Status{}, false
	}

	record := it.Key()
	keyLen, keyLenSz := binary.Uvarint(record)
	foundInternalKey := record[keyLenSz : keyLenSz+int(keyLen)]
	foundUserKey := foundInternalKey[:len(foundInternalKey)-tagSize]

	if m.icmp.UserCmp.Compare(foundUserKey, lookupKey.UserKey()) != 0 {
		return nil, Status{}, false
	}

	tag := binary.LittleEndian.Uint64(foundInternalKey[len(foundInternalKey)-tagSize:])
	_, vt := unpackTag(tag)
	switch vt {
	case TypeValue:
		valStart := keyLenSz + int(keyLen)
		valLen, valLenSz := binary.Uvarint(record[valStart:])
		value := record[valStart+valLenSz : valStart+valLenSz+int(valLen)]
		return value, Status{}, true
	case TypeDeletion:
		return nil, NotFoundStatus(lookupKey.UserKey()), true
	default:
		// Not reachable through Add, which only ever writes TypeValue or
		// TypeDeletion; any other tag byte means the record was
		// corrupted after the fact.
		panic("memtable: corrupt tag in record")
	}
}

// ApproximateMemoryUsage reports the backing arena's memory usage,
// which never decreases over the Memtable's lifetime.
func (m *Memtable) ApproximateMemoryUsage() uint64 {
	m.checkAlive()
	return m.arena.MemoryUsage()
}

// NewIterator returns a forward/backward iterator over the memtable's
// records in internal-key order. The caller must keep the Memtable
// referenced for the iterator's lifetime.
func (m *Memtable) NewIterator() *Iterator {
	m.checkAlive()
	return &Iterator{it: m.list.NewIterator()}
}

// Iterator walks encoded records in the order the skip list holds
// them, decoding the internal key and value on demand.
type Iterator struct {
	it *skiplist.Iterator[[]byte]
}

func (mi *Iterator) Valid() bool        { return mi.it.Valid() }
func (mi *Iterator) SeekToFirst()       { mi.it.SeekToFirst() }
func (mi *Iterator) SeekToLast()        { mi.it.SeekToLast() }
func (mi *Iterator) Next()              { mi.it.Next() }
func (mi *Iterator) Prev()              { mi.it.Prev() }
func (mi *Iterator) Seek(target []byte) { mi.it.Seek(target) }

// Status always reports nil: a memtable iterator cannot fail.
func (mi *Iterator) Status() error { return nil }

// Key returns the current entry's internal key (user key || tag).
func (mi *Iterator) Key() []byte {
	return decodeLengthPrefixedInternalKey(mi.it.Key())
}

// Value returns the current entry's value bytes.
func (mi *Iterator) Value() []byte {
	record := mi.it.Key()
	keyLen, keyLenSz := binary.Uvarint(record)
	valStart := keyLenSz + int(keyLen)
	valLen, valLenSz := binary.Uvarint(record[valStart:])
	return record[valStart+valLenSz : valStart+valLenSz+int(valLen)]
}

// Seq returns the sequence number of the entry the iterator is
// currently positioned at.
func (mi *Iterator) Seq() uint64 {
	ik := mi.Key()
	_, tag := splitInternalKey(ik)
	seq, _ := unpackTag(tag)
	return seq
}

// Type returns the operation type of the entry the iterator is
// currently positioned at.
func (mi *Iterator) Type() ValueType {
	ik := mi.Key()
	_, tag := splitInternalKey(ik)
	_, t := unpackTag(tag)
	return t
}

// UserKey returns just the user-key portion of the current entry.
func (mi *Iterator) UserKey() []byte {
	ik := mi.Key()
	uk, _ := splitInternalKey(ik)
	return uk
}
