package btrcall

import "fmt"

// OperationCode selects the engine action performed by a call.
// Codes are defined by the engine; the bridge passes them through untouched.
type OperationCode uint16

const (
	Open   OperationCode = 0x00
	Close  OperationCode = 0x01
	Insert OperationCode = 0x02
	Update OperationCode = 0x03
	Delete OperationCode = 0x04

	AcquireEqual          OperationCode = 0x05
	AcquireNext           OperationCode = 0x06
	AcquirePrevious       OperationCode = 0x07
	AcquireGreater        OperationCode = 0x08
	AcquireGreaterOrEqual OperationCode = 0x09
	AcquireLess           OperationCode = 0x0A
	AcquireLessOrEqual    OperationCode = 0x0B
	AcquireFirst          OperationCode = 0x0C
	AcquireLast           OperationCode = 0x0D

	Create                 OperationCode = 0x0E
	Stat                   OperationCode = 0x0F
	Extend                 OperationCode = 0x10
	GetPosition            OperationCode = 0x16
	GetDirectChunkOrRecord OperationCode = 0x17
	SetOwner               OperationCode = 0x1D

	StepFirst            OperationCode = 0x21
	StepLast             OperationCode = 0x22
	StepNext             OperationCode = 0x18
	StepNextExtended     OperationCode = 0x26
	StepPrevious         OperationCode = 0x23
	StepPreviousExtended OperationCode = 0x27

	QueryEqual          OperationCode = 0x37
	QueryNext           OperationCode = 0x38
	QueryPrevious       OperationCode = 0x39
	QueryGreater        OperationCode = 0x3A
	QueryGreaterOrEqual OperationCode = 0x3B
	QueryLess           OperationCode = 0x3C
	QueryLessOrEqual    OperationCode = 0x3D
	QueryFirst          OperationCode = 0x3E
	QueryLast           OperationCode = 0x3F

	None OperationCode = 0xFFFF
)

var operationNames = map[OperationCode]string{
	Open:                   "Open",
	Close:                  "Close",
	Insert:                 "Insert",
	Update:                 "Update",
	Delete:                 "Delete",
	AcquireEqual:           "AcquireEqual",
	AcquireNext:            "AcquireNext",
	AcquirePrevious:        "AcquirePrevious",
	AcquireGreater:         "AcquireGreater",
	AcquireGreaterOrEqual:  "AcquireGreaterOrEqual",
	AcquireLess:            "AcquireLess",
	AcquireLessOrEqual:     "AcquireLessOrEqual",
	AcquireFirst:           "AcquireFirst",
	AcquireLast:            "AcquireLast",
	Create:                 "Create",
	Stat:                   "Stat",
	Extend:                 "Extend",
	GetPosition:            "GetPosition",
	GetDirectChunkOrRecord: "GetDirectChunkOrRecord",
	SetOwner:               "SetOwner",
	StepFirst:              "StepFirst",
	StepLast:               "StepLast",
	StepNext:               "StepNext",
	StepNextExtended:       "StepNextExtended",
	StepPrevious:           "StepPrevious",
	StepPreviousExtended:   "StepPreviousExtended",
	QueryEqual:             "QueryEqual",
	QueryNext:              "QueryNext",
	QueryPrevious:          "QueryPrevious",
	QueryGreater:           "QueryGreater",
	QueryGreaterOrEqual:    "QueryGreaterOrEqual",
	QueryLess:              "QueryLess",
	QueryLessOrEqual:       "QueryLessOrEqual",
	QueryFirst:             "QueryFirst",
	QueryLast:              "QueryLast",
	None:                   "None",
}

// String returns the operation name. Lock-biased codes render as the base
// name followed by the bias, e.g. "StepNext+200".
func (op OperationCode) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	if base := op.Base(); base != op {
		if name, ok := operationNames[base]; ok {
			return fmt.Sprintf("%s+%d", name, op-base)
		}
	}
	return fmt.Sprintf("OperationCode(0x%X)", uint16(op))
}

// Base strips the record lock bias (+100, +200, +300, +400) from op.
func (op OperationCode) Base() OperationCode {
	if op >= 100 && op < 500 {
		return op % 100
	}
	return op
}

// AcquiresData reports whether op returns a record in the data buffer.
func (op OperationCode) AcquiresData() bool {
	switch op.Base() {
	case AcquireEqual, AcquireNext, AcquirePrevious, AcquireGreater,
		AcquireGreaterOrEqual, AcquireLess, AcquireLessOrEqual,
		AcquireFirst, AcquireLast,
		StepFirst, StepLast, StepNext, StepNextExtended,
		StepPrevious, StepPreviousExtended,
		GetDirectChunkOrRecord:
		return true
	}
	return false
}

// RequiresKey reports whether op reads search key data from the key buffer.
func (op OperationCode) RequiresKey() bool {
	switch op.Base() {
	case AcquireEqual, AcquireGreater, AcquireGreaterOrEqual, AcquireLess, AcquireLessOrEqual,
		QueryEqual, QueryGreater, QueryGreaterOrEqual, QueryLess, QueryLessOrEqual:
		return true
	}
	return false
}

// UsesPreviousQuery reports whether op continues from the logical position
// established by an earlier keyed operation.
func (op OperationCode) UsesPreviousQuery() bool {
	switch op.Base() {
	case AcquireNext, AcquirePrevious, QueryNext, QueryPrevious:
		return true
	}
	return false
}

// QueryOnly reports whether op positions by key without returning the record.
func (op OperationCode) QueryOnly() bool {
	base := op.Base()
	return base >= QueryEqual && base <= QueryLast
}

// IsStep reports whether op navigates by physical record order.
func (op OperationCode) IsStep() bool {
	switch op.Base() {
	case StepFirst, StepLast, StepNext, StepNextExtended, StepPrevious, StepPreviousExtended:
		return true
	}
	return false
}

// KeyNumber selects an index or carries an operation-specific sentinel such
// as an open mode. The bridge never interprets it.
type KeyNumber int8

// Open modes, carried in the key number of an Open call.
const (
	OpenNormal      KeyNumber = 0
	OpenAccelerated KeyNumber = -1
	OpenReadOnly    KeyNumber = -2
	OpenVerify      KeyNumber = -3
	OpenExclusive   KeyNumber = -4
)

// CreateNoOverwrite makes Create fail when the file already exists.
const CreateNoOverwrite KeyNumber = -1
