package goengine

import "encoding/binary"

// segment is one contiguous slice of the record that contributes to a key.
type segment struct {
	offset     int
	length     int
	dataType   uint8
	descending bool
}

// keyDef is a key built from one or more segments.
type keyDef struct {
	number     int
	attributes uint16
	segments   []segment
	length     int
}

// buildKeys groups segment specs into keys and validates them against the
// record length. It returns a status code on failure.
func buildKeys(specs []KeySpec, recordLength int) ([]*keyDef, int32) {
	var keys []*keyDef
	var current *keyDef

	for _, spec := range specs {
		if spec.Length == 0 {
			return nil, StatusBadKeyLength
		}
		offset := int(spec.Position) - 1
		if offset < 0 || offset+int(spec.Length) > recordLength {
			return nil, StatusInvalidKeyPosition
		}
		dataType := spec.DataType()
		if dataType == TypeFloat && spec.Length != 4 && spec.Length != 8 {
			return nil, StatusBadKeyLength
		}
		if (dataType == TypeAutoInc || dataType == TypeInteger) && spec.Length > 8 {
			return nil, StatusBadKeyLength
		}

		if current == nil {
			current = &keyDef{number: len(keys), attributes: spec.Attributes}
		}
		current.segments = append(current.segments, segment{
			offset:     offset,
			length:     int(spec.Length),
			dataType:   dataType,
			descending: spec.Attributes&AttrDescending != 0,
		})
		current.length += int(spec.Length)

		if !spec.Segmented() {
			keys = append(keys, current)
			current = nil
		}
	}
	if current != nil {
		// last segment claimed a continuation that never came
		return nil, StatusInvalidNumberOfKeys
	}
	return keys, StatusSuccess
}

func (k *keyDef) unique() bool {
	return k.attributes&(AttrDuplicates|AttrRepeatingDuplicates) == 0
}

func (k *keyDef) modifiable() bool {
	return k.attributes&AttrModifiable != 0
}

// autoInc returns the segment holding an auto-increment value, if any.
func (k *keyDef) autoInc() (segment, bool) {
	if len(k.segments) == 1 && k.segments[0].dataType == TypeAutoInc {
		return k.segments[0], true
	}
	return segment{}, false
}

// extract copies the key value out of record.
func (k *keyDef) extract(record []byte) []byte {
	raw := make([]byte, 0, k.length)
	for _, seg := range k.segments {
		raw = append(raw, record[seg.offset:seg.offset+seg.length]...)
	}
	return raw
}

// normalize converts a raw key value into bytes whose lexical order matches
// the engine's key order. raw must be exactly k.length bytes.
func (k *keyDef) normalize(raw []byte) []byte {
	out := make([]byte, k.length)
	pos := 0
	for _, seg := range k.segments {
		dst := out[pos : pos+seg.length]
		normalizeSegment(dst, raw[pos:pos+seg.length], seg.dataType)
		if seg.descending {
			for i := range dst {
				dst[i] = ^dst[i]
			}
		}
		pos += seg.length
	}
	return out
}

func normalizeSegment(dst, src []byte, dataType uint8) {
	n := len(src)
	switch dataType {
	case TypeInteger, TypeAutoInc:
		reverseInto(dst, src)
		dst[0] ^= 0x80
	case TypeUnsigned, TypeUnsignedBinary, TypeOldBinary:
		reverseInto(dst, src)
	case TypeFloat:
		reverseInto(dst, src)
		if dst[0]&0x80 != 0 {
			for i := range dst {
				dst[i] = ^dst[i]
			}
		} else {
			dst[0] ^= 0x80
		}
	case TypeZstring:
		for i := 0; i < n && src[i] != 0; i++ {
			dst[i] = src[i]
		}
	case TypeLstring:
		l := min(int(src[0]), n-1)
		copy(dst, src[1:1+l])
	default:
		copy(dst, src)
	}
}

func reverseInto(dst, src []byte) {
	n := len(src)
	for i := range src {
		dst[n-1-i] = src[i]
	}
}

// readInt decodes a little-endian signed integer of up to 8 bytes.
func readInt(b []byte) int64 {
	var buf [8]byte
	copy(buf[:], b)
	if len(b) < 8 && b[len(b)-1]&0x80 != 0 {
		for i := len(b); i < 8; i++ {
			buf[i] = 0xFF
		}
	}
	return int64(binary.LittleEndian.Uint64(buf[:]))
}

// writeInt encodes v little-endian into b, truncating to len(b) bytes.
func writeInt(b []byte, v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	copy(b, buf[:len(b)])
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
