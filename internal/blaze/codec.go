package blaze

import (
	"fmt"
	"math"
)

// MalformedPacket reports a decode failure at a specific byte offset, per
// spec: an impossible length, an unskippable unknown type tag, or trailing
// bytes left over after an object's terminator.
type MalformedPacket struct {
	Offset int
	Reason string
}

func (e *MalformedPacket) Error() string {
	return fmt.Sprintf("blaze: malformed packet at offset %d: %s", e.Offset, e.Reason)
}

func malformed(offset int, format string, args ...interface{}) error {
	return &MalformedPacket{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// Encode serializes an Object to its tagged-value wire representation.
// Encoding well-formed values is infallible, matching spec §4.1.
func Encode(obj Object) []byte {
	e := &encoder{}
	e.writeObjectBody(obj)
	return e.buf
}

// Decode parses a complete Object from buf. Trailing bytes after the
// object's end-of-object marker are an error.
func Decode(buf []byte) (Object, error) {
	d := &decoder{buf: buf}
	obj, err := d.readObjectBody()
	if err != nil {
		return Object{}, err
	}
	if d.pos != len(d.buf) {
		return Object{}, malformed(d.pos, "trailing bytes after object close")
	}
	return obj, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) writeByte(b byte) {
	e.buf = append(e.buf, b)
}

func (e *encoder) writeBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// writeVarint encodes a zig-zagged signed integer using 7-bit groups, low to
// high, continuation bit (0x80) set on every byte but the last.
func (e *encoder) writeVarint(v int64) {
	u := uint64((v << 1) ^ (v >> 63))
	for u >= 0x80 {
		e.writeByte(byte(u&0x7F) | 0x80)
		u >>= 7
	}
	e.writeByte(byte(u))
}

func (e *encoder) writeString(s string) {
	raw := []byte(s)
	e.writeVarint(int64(len(raw) + 1))
	e.writeBytes(raw)
	e.writeByte(0)
}

func (e *encoder) writeBlob(b []byte) {
	e.writeVarint(int64(len(b)))
	e.writeBytes(b)
}

func (e *encoder) writeValue(v Value) {
	switch val := v.(type) {
	case VarInt:
		e.writeVarint(int64(val))
	case Str:
		e.writeString(string(val))
	case Blob:
		e.writeBlob(val)
	case Object:
		e.writeObjectBody(val)
	case List:
		e.writeByte(val.ElemType)
		e.writeVarint(int64(len(val.Elems)))
		for _, elem := range val.Elems {
			e.writeValue(elem)
		}
	case Map:
		e.writeByte(val.KeyType)
		e.writeByte(val.ValueType)
		e.writeVarint(int64(len(val.Keys)))
		for i := range val.Keys {
			e.writeValue(val.Keys[i])
			e.writeValue(val.Values[i])
		}
	case Union:
		e.writeByte(val.Discriminator)
		if val.Discriminator != NoUnion {
			inner := &encoder{}
			inner.writeValue(val.Value)
			e.writeBlob(inner.buf)
		}
	case Pair:
		e.writeVarint(val[0])
		e.writeVarint(val[1])
	case Triple:
		e.writeVarint(val[0])
		e.writeVarint(val[1])
		e.writeVarint(val[2])
	case Float:
		bits := math.Float32bits(float32(val))
		e.writeByte(byte(bits >> 24))
		e.writeByte(byte(bits >> 16))
		e.writeByte(byte(bits >> 8))
		e.writeByte(byte(bits))
	case Generic:
		e.writeVarint(int64(val.Kind))
		e.writeObjectBody(val.Object)
	default:
		panic(fmt.Sprintf("blaze: encode: unsupported value type %T", v))
	}
}

func (e *encoder) writeObjectBody(obj Object) {
	for _, f := range obj.Fields {
		tagBuf := make([]byte, 3)
		putTag(tagBuf, f.Tag)
		e.writeBytes(tagBuf)
		e.writeByte(f.Value.typeTag())
		e.writeValue(f.Value)
	}
	endBuf := make([]byte, 3)
	putTag(endBuf, EndOfObject)
	e.writeBytes(endBuf)
}
