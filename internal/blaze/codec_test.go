package blaze

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-test/deep"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := map[string]Object{
		"scalars": {Fields: []Field{
			{Tag: PackTag("INT0"), Value: VarInt(42)},
			{Tag: PackTag("INTN"), Value: VarInt(-7)},
			{Tag: PackTag("STR0"), Value: Str("hello")},
			{Tag: PackTag("BLB0"), Value: Blob{0x01, 0x02, 0x03}},
		}},
		"nested_object": {Fields: []Field{
			{Tag: PackTag("OUTR"), Value: Object{Fields: []Field{
				{Tag: PackTag("INNR"), Value: VarInt(99)},
			}}},
		}},
		"list": {Fields: []Field{
			{Tag: PackTag("LIST"), Value: List{
				ElemType: TypeVarInt,
				Elems:    []Value{VarInt(1), VarInt(2), VarInt(3)},
			}},
		}},
		"map": {Fields: []Field{
			{Tag: PackTag("MAP0"), Value: Map{
				KeyType:   TypeString,
				ValueType: TypeVarInt,
				Keys:      []Value{Str("a"), Str("b")},
				Values:    []Value{VarInt(1), VarInt(2)},
			}},
		}},
		"pair_and_triple": {Fields: []Field{
			{Tag: PackTag("PAIR"), Value: Pair{1, 2}},
			{Tag: PackTag("TRIP"), Value: Triple{1, 2, 3}},
		}},
		"union_present": {Fields: []Field{
			{Tag: PackTag("UNIN"), Value: Union{Discriminator: 1, Value: VarInt(5)}},
		}},
		"union_absent": {Fields: []Field{
			{Tag: PackTag("UNIN"), Value: Union{Discriminator: NoUnion}},
		}},
		"generic": {Fields: []Field{
			{Tag: PackTag("GEN0"), Value: Generic{Kind: 7, Object: Object{Fields: []Field{
				{Tag: PackTag("XYYY"), Value: VarInt(1)},
			}}}},
		}},
	}

	for name, obj := range tests {
		t.Run(name, func(t *testing.T) {
			encoded := Encode(obj)
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() returned unexpected error: %v", err)
			}

			// Unions carry their payload as a raw blob once decoded; decode it
			// with the wire type of the constructor-time Value before comparing.
			normalizeUnions(obj, &decoded)

			if diff := deep.Equal(obj, decoded); diff != nil {
				t.Errorf("round-trip mismatch:\n%v", diff)
			}
		})
	}
}

func normalizeUnions(want Object, got *Object) {
	for i, f := range got.Fields {
		u, ok := f.Value.(Union)
		if !ok || u.Discriminator == NoUnion || i >= len(want.Fields) {
			continue
		}
		w, ok := want.Fields[i].Value.(Union)
		if !ok || w.Value == nil {
			continue
		}
		payload, err := u.Payload(w.Value.typeTag())
		if err == nil {
			got.Fields[i].Value = Union{Discriminator: u.Discriminator, Value: payload}
		}
	}
}

func TestDecodeSkipsUnknownFieldType(t *testing.T) {
	e := &encoder{}

	tagBuf := make([]byte, 3)
	putTag(tagBuf, PackTag("FRST"))
	e.writeBytes(tagBuf)
	e.writeByte(TypeVarInt)
	e.writeVarint(1)

	// A field using a reserved/unknown type tag, decodable only as an
	// opaque length-prefixed blob.
	putTag(tagBuf, PackTag("UNKN"))
	e.writeBytes(tagBuf)
	e.writeByte(0x7E)
	e.writeBlob([]byte{0xAA, 0xBB, 0xCC})

	putTag(tagBuf, PackTag("LAST"))
	e.writeBytes(tagBuf)
	e.writeByte(TypeVarInt)
	e.writeVarint(2)

	endBuf := make([]byte, 3)
	putTag(endBuf, EndOfObject)
	e.writeBytes(endBuf)

	obj, err := Decode(e.buf)
	if err != nil {
		t.Fatalf("Decode() returned unexpected error: %v", err)
	}

	first, ok := obj.Get(PackTag("FRST"))
	if !ok || first != VarInt(1) {
		t.Errorf("expected FRST = 1, got %v (present=%v)", first, ok)
	}
	last, ok := obj.Get(PackTag("LAST"))
	if !ok || last != VarInt(2) {
		t.Errorf("expected LAST = 2, got %v (present=%v)", last, ok)
	}
}

func TestDecodeMalformedTrailingBytes(t *testing.T) {
	obj := Object{Fields: []Field{{Tag: PackTag("ABCD"), Value: VarInt(1)}}}
	encoded := Encode(obj)
	encoded = append(encoded, 0xFF)

	_, err := Decode(encoded)
	if err == nil {
		t.Fatal("expected error for trailing bytes after object close")
	}
	var malformed *MalformedPacket
	if !asMalformed(err, &malformed) {
		t.Fatalf("expected *MalformedPacket, got %T: %v", err, err)
	}
}

func asMalformed(err error, target **MalformedPacket) bool {
	m, ok := err.(*MalformedPacket)
	if ok {
		*target = m
	}
	return ok
}

// TestDecodeDumpsReadably is a sanity check that a decoded Object dumps to
// something a human debugging a capture could actually read, not just a
// pile of interface{} noise.
func TestDecodeDumpsReadably(t *testing.T) {
	obj := Object{Fields: []Field{
		{Tag: PackTag("PID0"), Value: VarInt(1234)},
		{Tag: PackTag("NAME"), Value: Str("Shepard")},
	}}
	decoded, err := Decode(Encode(obj))
	if err != nil {
		t.Fatalf("Decode() returned unexpected error: %v", err)
	}

	dump := spew.Sdump(decoded)
	if !strings.Contains(dump, "Shepard") {
		t.Errorf("spew dump missing decoded string value, got:\n%s", dump)
	}
}

func TestPackTagRoundTrip(t *testing.T) {
	for _, literal := range []string{"ADDR", "UTIL", "GAM3", "A1B2"} {
		tag := PackTag(literal)
		if got := tag.String(); got != literal {
			t.Errorf("PackTag(%q).String() = %q, want %q", literal, got, literal)
		}
	}
}
