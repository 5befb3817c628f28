package blaze

import "math"

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.pos
}

func (d *decoder) readByte() (byte, error) {
	if d.remaining() < 1 {
		return 0, malformed(d.pos, "unexpected end of buffer reading byte")
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readN(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, malformed(d.pos, "unexpected end of buffer reading %d bytes", n)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) readVarint() (int64, error) {
	var u uint64
	var shift uint
	start := d.pos
	for {
		b, err := d.readByte()
		if err != nil {
			return 0, err
		}
		u |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, malformed(start, "varint too long")
		}
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

func (d *decoder) readString() (Str, error) {
	start := d.pos
	length, err := d.readVarint()
	if err != nil {
		return "", err
	}
	if length < 1 {
		return "", malformed(start, "string length %d is impossible", length)
	}
	raw, err := d.readN(int(length))
	if err != nil {
		return "", err
	}
	// Last byte is the NUL terminator; trim it.
	return Str(raw[:len(raw)-1]), nil
}

func (d *decoder) readBlob() (Blob, error) {
	start := d.pos
	length, err := d.readVarint()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, malformed(start, "blob length %d is impossible", length)
	}
	raw, err := d.readN(int(length))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (d *decoder) readTag() (Tag, error) {
	raw, err := d.readN(3)
	if err != nil {
		return 0, err
	}
	return getTag(raw), nil
}

// readValue decodes one value of the given wire type. Type bytes outside the
// known set are treated as an opaque, varint-length-prefixed blob so that
// unrecognized future fields remain skippable without understanding them,
// per spec §4.1 ("a reader must be able to consume exactly that value's
// bytes and resume").
func (d *decoder) readValue(typeTag byte) (Value, error) {
	switch typeTag {
	case TypeVarInt:
		v, err := d.readVarint()
		return VarInt(v), err
	case TypeString:
		return d.readString()
	case TypeBlob:
		return d.readBlob()
	case TypeGroup:
		return d.readObjectBody()
	case TypeList:
		return d.readList()
	case TypeMap:
		return d.readMap()
	case TypeUnion:
		return d.readUnion()
	case TypePair:
		a, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		b, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		return Pair{a, b}, nil
	case TypeTriple:
		a, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		b, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		c, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		return Triple{a, b, c}, nil
	case TypeFloat:
		raw, err := d.readN(4)
		if err != nil {
			return nil, err
		}
		bits := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		return Float(math.Float32frombits(bits)), nil
	case TypeGeneric:
		kind, err := d.readVarint()
		if err != nil {
			return nil, err
		}
		obj, err := d.readObjectBody()
		if err != nil {
			return nil, err
		}
		return Generic{Kind: VarInt(kind), Object: obj}, nil
	default:
		return d.readBlob()
	}
}

func (d *decoder) readList() (List, error) {
	elemType, err := d.readByte()
	if err != nil {
		return List{}, err
	}
	count, err := d.readVarint()
	if err != nil {
		return List{}, err
	}
	if count < 0 {
		return List{}, malformed(d.pos, "list count %d is impossible", count)
	}
	list := List{ElemType: elemType, Elems: make([]Value, 0, count)}
	for i := int64(0); i < count; i++ {
		v, err := d.readValue(elemType)
		if err != nil {
			return List{}, err
		}
		list.Elems = append(list.Elems, v)
	}
	return list, nil
}

func (d *decoder) readMap() (Map, error) {
	keyType, err := d.readByte()
	if err != nil {
		return Map{}, err
	}
	valueType, err := d.readByte()
	if err != nil {
		return Map{}, err
	}
	count, err := d.readVarint()
	if err != nil {
		return Map{}, err
	}
	if count < 0 {
		return Map{}, malformed(d.pos, "map count %d is impossible", count)
	}
	m := Map{KeyType: keyType, ValueType: valueType}
	for i := int64(0); i < count; i++ {
		k, err := d.readValue(keyType)
		if err != nil {
			return Map{}, err
		}
		v, err := d.readValue(valueType)
		if err != nil {
			return Map{}, err
		}
		m.Keys = append(m.Keys, k)
		m.Values = append(m.Values, v)
	}
	return m, nil
}

func (d *decoder) readUnion() (Union, error) {
	disc, err := d.readByte()
	if err != nil {
		return Union{}, err
	}
	if disc == NoUnion {
		return Union{Discriminator: disc}, nil
	}
	// The union payload's wire type is carried implicitly by its
	// discriminator in the caller's schema; on the wire it's a
	// length-prefixed blob so a reader without that schema can still skip
	// it. Payload() decodes it once the caller knows the variant.
	raw, err := d.readBlob()
	if err != nil {
		return Union{}, err
	}
	return Union{Discriminator: disc, raw: raw}, nil
}

func (d *decoder) readObjectBody() (Object, error) {
	var obj Object
	for {
		tag, err := d.readTag()
		if err != nil {
			return Object{}, err
		}
		if tag == EndOfObject {
			return obj, nil
		}
		typeTag, err := d.readByte()
		if err != nil {
			return Object{}, err
		}
		v, err := d.readValue(typeTag)
		if err != nil {
			return Object{}, err
		}
		obj.Fields = append(obj.Fields, Field{Tag: tag, Value: v})
	}
}
