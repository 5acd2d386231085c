// Package value implements Jinx's dynamic value model: the tagged Variant
// used on the VM stack, in collections, and as property/variable contents.
//
// The shape follows the teacher's Cell type (db47h/ngaro's vm package): a
// small value type with named constructors and predicates, rather than a
// Go interface hierarchy. Unlike Cell (a bare int32), Variant is a tagged
// union because Jinx scripts are dynamically typed.
package value

import (
	"fmt"

	"github.com/pkg/errors"
)

// Type is the tag of a Variant; it is itself a first-class Value (spec.md
// §3: "ValueType (the tag itself, as a first-class value)").
type Type uint8

const (
	Null Type = iota
	Integer
	Number
	Boolean
	String
	Collection
	CollectionIterator
	Function
	Coroutine
	UserObject
	Buffer
	Guid
	ValueType
)

func (t Type) String() string {
	switch t {
	case Null:
		return "null"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case String:
		return "string"
	case Collection:
		return "collection"
	case CollectionIterator:
		return "iterator"
	case Function:
		return "function"
	case Coroutine:
		return "coroutine"
	case UserObject:
		return "object"
	case Buffer:
		return "buffer"
	case Guid:
		return "guid"
	case ValueType:
		return "type"
	default:
		return "unknown"
	}
}

// Guid is a 128-bit value laid out as four little-endian fields, matching
// the bytecode encoding in spec.md §3.
type Guid struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// Collection is the shared, ordered key/value map backing Jinx's collection
// type. Ordering follows the Value total order (compare.go), not insertion
// order, so that iterator traversal is deterministic per spec.md §3/§8.4.
type Collection struct {
	entries []entry
}

type entry struct {
	key Value
	val Value
}

// NewCollection returns an empty, ready-to-use Collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Len returns the number of key/value pairs.
func (c *Collection) Len() int { return len(c.entries) }

func (c *Collection) search(key Value) (int, bool) {
	lo, hi := 0, len(c.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		switch Compare(c.entries[mid].key, key) {
		case -1:
			lo = mid + 1
		case 1:
			hi = mid
		default:
			return mid, true
		}
	}
	return lo, false
}

// Get looks up key, returning (Null, false) when absent.
func (c *Collection) Get(key Value) (Value, bool) {
	i, ok := c.search(key)
	if !ok {
		return Value{}, false
	}
	return c.entries[i].val, true
}

// Set inserts or replaces the value for key, maintaining key order.
func (c *Collection) Set(key, v Value) {
	i, ok := c.search(key)
	if ok {
		c.entries[i].val = v
		return
	}
	c.entries = append(c.entries, entry{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = entry{key, v}
}

// Erase removes key, reporting whether it was present.
func (c *Collection) Erase(key Value) bool {
	i, ok := c.search(key)
	if !ok {
		return false
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return true
}

// At returns the i'th entry in key order; used by iterators.
func (c *Collection) At(i int) (Value, Value) {
	e := c.entries[i]
	return e.key, e.val
}

// AppendList appends values keyed 1..n after the current max auto-index is
// not tracked; used only for PushList construction of fresh collections.
func (c *Collection) AppendList(vals []Value) {
	for idx, v := range vals {
		c.Set(Int(int64(idx + 1)), v)
	}
}

// Iterator is a cursor (possibly past-the-end) over a shared Collection.
type Iterator struct {
	Coll *Collection
	Pos  int
}

// Done reports whether the cursor is past the last entry.
func (it *Iterator) Done() bool {
	return it.Coll == nil || it.Pos >= it.Coll.Len()
}

// Key / Value return the entry at the cursor. Callers must check Done first.
func (it *Iterator) Key() Value {
	k, _ := it.Coll.At(it.Pos)
	return k
}

func (it *Iterator) Value() Value {
	_, v := it.Coll.At(it.Pos)
	return v
}

// Value is the tagged dynamic value (the "Variant" of spec.md §3). The zero
// Value is Null.
type Value struct {
	typ Type
	i   int64       // Integer, Boolean (0/1), Function id
	f   float64     // Number
	s   string      // String
	g   Guid        // Guid
	ref interface{} // Collection (*Collection), CollectionIterator (*Iterator), Coroutine, UserObject, Buffer
	vt  Type        // payload for ValueType values
}

// NullValue is the canonical Null Value.
var NullValue = Value{typ: Null}

func Int(v int64) Value                 { return Value{typ: Integer, i: v} }
func Num(v float64) Value               { return Value{typ: Number, f: v} }
func Bool(v bool) Value                 { return Value{typ: Boolean, i: boolToInt(v)} }
func Str(v string) Value                { return Value{typ: String, s: v} }
func FuncID(id uint64) Value            { return Value{typ: Function, i: int64(id)} }
func CoroutineRef(c interface{}) Value  { return Value{typ: Coroutine, ref: c} }
func UserObjectRef(o interface{}) Value { return Value{typ: UserObject, ref: o} }
func BufferRef(b interface{}) Value     { return Value{typ: Buffer, ref: b} }
func GuidValue(g Guid) Value            { return Value{typ: Guid, g: g} }
func TypeValue(t Type) Value            { return Value{typ: ValueType, vt: t} }

func CollectionValue(c *Collection) Value {
	if c == nil {
		c = NewCollection()
	}
	return Value{typ: Collection, ref: c}
}

func IteratorValue(it *Iterator) Value {
	return Value{typ: CollectionIterator, ref: it}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) Type() Type { return v.typ }
func (v Value) IsNull() bool { return v.typ == Null }

func (v Value) AsInt() int64 { return v.i }
func (v Value) AsNumber() float64 { return v.f }
func (v Value) AsBool() bool { return v.i != 0 }
func (v Value) AsString() string { return v.s }
func (v Value) AsGuid() Guid { return v.g }
func (v Value) AsFuncID() uint64 { return uint64(v.i) }
func (v Value) AsValueType() Type { return v.vt }

// AsCollection returns the shared collection payload, or nil if v is not a
// Collection.
func (v Value) AsCollection() *Collection {
	c, _ := v.ref.(*Collection)
	return c
}

// AsIterator returns the shared iterator payload, or nil if v is not a
// CollectionIterator.
func (v Value) AsIterator() *Iterator {
	it, _ := v.ref.(*Iterator)
	return it
}

// Ref returns the raw reference payload (Coroutine/UserObject/Buffer).
func (v Value) Ref() interface{} { return v.ref }

func (v Value) String() string {
	switch v.typ {
	case Null:
		return "null"
	case Integer:
		return fmt.Sprintf("%d", v.i)
	case Number:
		return fmt.Sprintf("%g", v.f)
	case Boolean:
		return fmt.Sprintf("%t", v.i != 0)
	case String:
		return v.s
	case Guid:
		return fmt.Sprintf("%08x-%04x-%04x-%x", v.g.Data1, v.g.Data2, v.g.Data3, v.g.Data4)
	case ValueType:
		return v.vt.String()
	default:
		return fmt.Sprintf("<%s>", v.typ)
	}
}

// IsKeyable reports whether v may be used as a collection key (spec.md §3:
// "Only Number, Integer, Boolean, String, Guid may be used as collection
// keys").
func IsKeyable(v Value) bool {
	switch v.typ {
	case Number, Integer, Boolean, String, Guid:
		return true
	default:
		return false
	}
}

// ErrNotKeyable is returned by callers that need to reject non-keyable
// values before inserting into a Collection.
var ErrNotKeyable = errors.New("value: type is not a valid collection key")
