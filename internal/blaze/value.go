package blaze

// Type tags identify the encoding of a value following a field header (or,
// for list/map elements, following the collection's own header). Any byte
// value not listed here is still self-describing on the wire (see decode.go)
// so that unrecognized future fields can be skipped without understanding
// their contents.
const (
	TypeVarInt byte = 0x00
	TypeString byte = 0x01
	TypeBlob   byte = 0x02
	TypeGroup  byte = 0x03
	TypeList   byte = 0x04
	TypeMap    byte = 0x05
	TypeUnion  byte = 0x06
	TypePair   byte = 0x07
	TypeTriple byte = 0x08
	TypeFloat  byte = 0x09
	TypeGeneric byte = 0x0A
)

// NoUnion is the discriminator value that marks an absent union payload.
const NoUnion byte = 0x7F

// Value is any decoded tagged value. Concrete types below implement it.
type Value interface {
	typeTag() byte
}

type VarInt int64

func (VarInt) typeTag() byte { return TypeVarInt }

type Str string

func (Str) typeTag() byte { return TypeString }

type Blob []byte

func (Blob) typeTag() byte { return TypeBlob }

// Pair is a fixed 2-integer tuple, used for things like (component,command)
// pairs embedded as values rather than header fields.
type Pair [2]int64

func (Pair) typeTag() byte { return TypePair }

// Triple is a fixed 3-integer tuple.
type Triple [3]int64

func (Triple) typeTag() byte { return TypeTriple }

type Float float32

func (Float) typeTag() byte { return TypeFloat }

// Field is one named slot of an Object.
type Field struct {
	Tag   Tag
	Value Value
}

// Object is a nested, tag-keyed set of fields — the workhorse container of
// the format. A Packet body is always an Object.
type Object struct {
	Fields []Field
}

func (Object) typeTag() byte { return TypeGroup }

// Get returns the value stored under tag and whether it was present.
func (o Object) Get(tag Tag) (Value, bool) {
	for _, f := range o.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return nil, false
}

// Set appends or replaces the field stored under tag.
func (o *Object) Set(tag Tag, v Value) {
	for i, f := range o.Fields {
		if f.Tag == tag {
			o.Fields[i].Value = v
			return
		}
	}
	o.Fields = append(o.Fields, Field{Tag: tag, Value: v})
}

// List is a homogeneous sequence of values, all sharing ElemType.
type List struct {
	ElemType byte
	Elems    []Value
}

func (List) typeTag() byte { return TypeList }

// Map is an ordered key/value sequence; keys and values may each be any
// single Value type but must be internally homogeneous per the wire format.
type Map struct {
	KeyType   byte
	ValueType byte
	Keys      []Value
	Values    []Value
}

func (Map) typeTag() byte { return TypeMap }

// Union is a discriminated optional payload: Discriminator selects which
// variant is present, or equals NoUnion when the union carries nothing. The
// payload travels on the wire as a length-prefixed blob so a reader without
// the caller's schema can still skip over it; use Payload to decode it once
// the variant's wire type is known.
type Union struct {
	Discriminator byte
	Value         Value
	raw           []byte
}

func (Union) typeTag() byte { return TypeUnion }

// Payload decodes the union's raw bytes as a value of the given wire type.
// Only meaningful when Discriminator != NoUnion.
func (u Union) Payload(wireType byte) (Value, error) {
	d := &decoder{buf: u.raw}
	return d.readValue(wireType)
}

// Generic wraps an Object with an additional type-kind tag, used by the
// protocol for polymorphic container fields (e.g. template/class hints).
type Generic struct {
	Kind   VarInt
	Object Object
}

func (Generic) typeTag() byte { return TypeGeneric }
