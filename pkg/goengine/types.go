// Package goengine is an in-process Btrieve-style record engine that exposes
// the same entry point as the native BTRCALL library, with slices standing in
// for the raw pointers. It backs the pure Go build of btrcall.
//
// Files are kept in memory while open and written through to disk on every
// mutation. Each key is indexed with an adaptive radix tree over an
// order-preserving encoding of the key bytes.
package goengine

import "encoding/binary"

// Operation codes understood by the engine (lock biases are stripped first).
const (
	OpOpen                  = 0x00
	OpClose                 = 0x01
	OpInsert                = 0x02
	OpUpdate                = 0x03
	OpDelete                = 0x04
	OpAcquireEqual          = 0x05
	OpAcquireNext           = 0x06
	OpAcquirePrevious       = 0x07
	OpAcquireGreater        = 0x08
	OpAcquireGreaterOrEqual = 0x09
	OpAcquireLess           = 0x0A
	OpAcquireLessOrEqual    = 0x0B
	OpAcquireFirst          = 0x0C
	OpAcquireLast           = 0x0D
	OpCreate                = 0x0E
	OpStat                  = 0x0F
	OpGetPosition           = 0x16
	OpGetDirect             = 0x17
	OpStepNext              = 0x18
	OpStepFirst             = 0x21
	OpStepLast              = 0x22
	OpStepPrevious          = 0x23
	OpStepNextExtended      = 0x26
	OpStepPreviousExtended  = 0x27
	OpQueryEqual            = 0x37
	OpQueryNext             = 0x38
	OpQueryPrevious         = 0x39
	OpQueryGreater          = 0x3A
	OpQueryGreaterOrEqual   = 0x3B
	OpQueryLess             = 0x3C
	OpQueryLessOrEqual      = 0x3D
	OpQueryFirst            = 0x3E
	OpQueryLast             = 0x3F
)

// Status codes returned by Call.
const (
	StatusSuccess                 = 0
	StatusInvalidOperation        = 1
	StatusIOError                 = 2
	StatusFileNotOpen             = 3
	StatusKeyValueNotFound        = 4
	StatusDuplicateKeyValue       = 5
	StatusInvalidKeyNumber        = 6
	StatusDifferentKeyNumber      = 7
	StatusInvalidPositioning      = 8
	StatusEndOfFile               = 9
	StatusNonModifiableKeyValue   = 10
	StatusInvalidFileName         = 11
	StatusFileNotFound            = 12
	StatusKeyBufferTooShort       = 21
	StatusDataBufferLengthOverrun = 22
	StatusPositionBlockLength     = 23
	StatusInvalidNumberOfKeys     = 26
	StatusInvalidKeyPosition      = 27
	StatusBadRecordLength         = 28
	StatusBadKeyLength            = 29
	StatusNotBtrieveFile          = 30
	StatusOperationNotAllowed     = 41
	StatusInvalidRecordAddress    = 43
	StatusAccessDenied            = 46
	StatusFileAlreadyExists       = 59
)

// Open modes carried in the key number of an Open call.
const (
	ModeNormal      = 0
	ModeAccelerated = -1
	ModeReadOnly    = -2
	ModeVerify      = -3
	ModeExclusive   = -4

	// CreateNoOverwrite in the key number makes Create refuse existing files.
	CreateNoOverwrite = -1
)

// Key attribute bits.
const (
	AttrDuplicates          = 1 << 0
	AttrModifiable          = 1 << 1
	AttrOldStyleBinary      = 1 << 2
	AttrNullAllSegments     = 1 << 3
	AttrSegmentedKey        = 1 << 4
	AttrNumberedACS         = 1 << 5
	AttrDescending          = 1 << 6
	AttrRepeatingDuplicates = 1 << 7
	AttrExtendedDataType    = 1 << 8
	AttrNullAnySegment      = 1 << 9
)

// Key data types (extended data type byte).
const (
	TypeString         = 0x00
	TypeInteger        = 0x01
	TypeFloat          = 0x02
	TypeDate           = 0x03
	TypeTime           = 0x04
	TypeDecimal        = 0x05
	TypeMoney          = 0x06
	TypeLogical        = 0x07
	TypeNumeric        = 0x08
	TypeBfloat         = 0x09
	TypeLstring        = 0x0A
	TypeZstring        = 0x0B
	TypeUnsigned       = 0x0D
	TypeUnsignedBinary = 0x0E
	TypeAutoInc        = 0x0F
	TypeOldASCII       = 0x20
	TypeOldBinary      = 0x21
)

const (
	// PositionBlockLength is the size of the per-handle position block.
	PositionBlockLength = 128

	// handleLength bytes at the start of the position block hold the handle id.
	handleLength = 16

	// FileSpecLength and KeySpecLength are the packed sizes of the Create/Stat
	// structures.
	FileSpecLength = 16
	KeySpecLength  = 16

	// FlagVariableLength marks files whose records may exceed the fixed length.
	FlagVariableLength = 0x0001
)

// FileSpec is the file header exchanged by Create and Stat (FILESPEC).
type FileSpec struct {
	RecordLength      uint16
	PageSize          uint16
	NumberOfKeys      uint8
	FileVersion       uint8
	RecordCount       uint32
	FileFlags         uint16
	NumExtraPointers  uint8
	PhysicalPageSize  uint8
	PreallocatedPages uint16
}

// DecodeFileSpec reads a packed little-endian FILESPEC.
func DecodeFileSpec(b []byte) (FileSpec, bool) {
	if len(b) < FileSpecLength {
		return FileSpec{}, false
	}
	return FileSpec{
		RecordLength:      binary.LittleEndian.Uint16(b[0:]),
		PageSize:          binary.LittleEndian.Uint16(b[2:]),
		NumberOfKeys:      b[4],
		FileVersion:       b[5],
		RecordCount:       binary.LittleEndian.Uint32(b[6:]),
		FileFlags:         binary.LittleEndian.Uint16(b[10:]),
		NumExtraPointers:  b[12],
		PhysicalPageSize:  b[13],
		PreallocatedPages: binary.LittleEndian.Uint16(b[14:]),
	}, true
}

// Encode writes s into the first FileSpecLength bytes of b.
func (s FileSpec) Encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], s.RecordLength)
	binary.LittleEndian.PutUint16(b[2:], s.PageSize)
	b[4] = s.NumberOfKeys
	b[5] = s.FileVersion
	binary.LittleEndian.PutUint32(b[6:], s.RecordCount)
	binary.LittleEndian.PutUint16(b[10:], s.FileFlags)
	b[12] = s.NumExtraPointers
	b[13] = s.PhysicalPageSize
	binary.LittleEndian.PutUint16(b[14:], s.PreallocatedPages)
}

// KeySpec describes one key segment (KEYSPEC). Position is 1-based.
type KeySpec struct {
	Position         uint16
	Length           uint16
	Attributes       uint16
	UniqueKeys       uint32
	ExtendedDataType uint8
	NullValue        uint8
	Reserved         uint16
	Number           uint8
	ACSNumber        uint8
}

// DecodeKeySpec reads a packed little-endian KEYSPEC.
func DecodeKeySpec(b []byte) (KeySpec, bool) {
	if len(b) < KeySpecLength {
		return KeySpec{}, false
	}
	return KeySpec{
		Position:         binary.LittleEndian.Uint16(b[0:]),
		Length:           binary.LittleEndian.Uint16(b[2:]),
		Attributes:       binary.LittleEndian.Uint16(b[4:]),
		UniqueKeys:       binary.LittleEndian.Uint32(b[6:]),
		ExtendedDataType: b[10],
		NullValue:        b[11],
		Reserved:         binary.LittleEndian.Uint16(b[12:]),
		Number:           b[14],
		ACSNumber:        b[15],
	}, true
}

// Encode writes k into the first KeySpecLength bytes of b.
func (k KeySpec) Encode(b []byte) {
	binary.LittleEndian.PutUint16(b[0:], k.Position)
	binary.LittleEndian.PutUint16(b[2:], k.Length)
	binary.LittleEndian.PutUint16(b[4:], k.Attributes)
	binary.LittleEndian.PutUint32(b[6:], k.UniqueKeys)
	b[10] = k.ExtendedDataType
	b[11] = k.NullValue
	binary.LittleEndian.PutUint16(b[12:], k.Reserved)
	b[14] = k.Number
	b[15] = k.ACSNumber
}

// DataType returns the effective data type of the segment.
func (k KeySpec) DataType() uint8 {
	switch {
	case k.Attributes&AttrExtendedDataType != 0:
		return k.ExtendedDataType
	case k.Attributes&AttrOldStyleBinary != 0:
		return TypeOldBinary
	default:
		return TypeOldASCII
	}
}

// Segmented reports whether the next key spec continues this key.
func (k KeySpec) Segmented() bool {
	return k.Attributes&AttrSegmentedKey != 0
}
