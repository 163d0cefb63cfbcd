package btrcall

import "fmt"

// ResponseCode is the status returned by the engine. Zero is success; every
// other value is engine-defined and reaches the caller verbatim.
type ResponseCode int32

const (
	Success                 ResponseCode = 0
	InvalidOperation        ResponseCode = 1
	IOError                 ResponseCode = 2
	FileNotOpen             ResponseCode = 3
	KeyValueNotFound        ResponseCode = 4
	DuplicateKeyValue       ResponseCode = 5
	InvalidKeyNumber        ResponseCode = 6
	DifferentKeyNumber      ResponseCode = 7
	InvalidPositioning      ResponseCode = 8
	EndOfFile               ResponseCode = 9
	NonModifiableKeyValue   ResponseCode = 10
	InvalidFileName         ResponseCode = 11
	FileNotFound            ResponseCode = 12
	ExtendedFileError       ResponseCode = 13
	PreImageOpenError       ResponseCode = 14
	PreImageIOError         ResponseCode = 15
	ExpansionError          ResponseCode = 16
	CloseError              ResponseCode = 17
	DiskFull                ResponseCode = 18
	UnrecoverableError      ResponseCode = 19
	RecordManagerInactive   ResponseCode = 20
	KeyBufferTooShort       ResponseCode = 21
	DataBufferLengthOverrun ResponseCode = 22
	BadPositionBlockLength  ResponseCode = 23
	PageSizeError           ResponseCode = 24
	CreateIOError           ResponseCode = 25
	InvalidNumberOfKeys     ResponseCode = 26
	InvalidKeyPosition      ResponseCode = 27
	BadRecordLength         ResponseCode = 28
	BadKeyLength            ResponseCode = 29
	NotBtrieveFile          ResponseCode = 30
	TransactionIsActive     ResponseCode = 37
	OperationNotAllowed     ResponseCode = 41
	InvalidRecordAddress    ResponseCode = 43
	AccessDenied            ResponseCode = 46
	InvalidInterface        ResponseCode = 53
	FileAlreadyExists       ResponseCode = 59
)

var responseNames = map[ResponseCode]string{
	Success:                 "Success",
	InvalidOperation:        "InvalidOperation",
	IOError:                 "IOError",
	FileNotOpen:             "FileNotOpen",
	KeyValueNotFound:        "KeyValueNotFound",
	DuplicateKeyValue:       "DuplicateKeyValue",
	InvalidKeyNumber:        "InvalidKeyNumber",
	DifferentKeyNumber:      "DifferentKeyNumber",
	InvalidPositioning:      "InvalidPositioning",
	EndOfFile:               "EndOfFile",
	NonModifiableKeyValue:   "NonModifiableKeyValue",
	InvalidFileName:         "InvalidFileName",
	FileNotFound:            "FileNotFound",
	ExtendedFileError:       "ExtendedFileError",
	PreImageOpenError:       "PreImageOpenError",
	PreImageIOError:         "PreImageIOError",
	ExpansionError:          "ExpansionError",
	CloseError:              "CloseError",
	DiskFull:                "DiskFull",
	UnrecoverableError:      "UnrecoverableError",
	RecordManagerInactive:   "RecordManagerInactive",
	KeyBufferTooShort:       "KeyBufferTooShort",
	DataBufferLengthOverrun: "DataBufferLengthOverrun",
	BadPositionBlockLength:  "PositionBlockLength",
	PageSizeError:           "PageSizeError",
	CreateIOError:           "CreateIOError",
	InvalidNumberOfKeys:     "InvalidNumberOfKeys",
	InvalidKeyPosition:      "InvalidKeyPosition",
	BadRecordLength:         "BadRecordLength",
	BadKeyLength:            "BadKeyLength",
	NotBtrieveFile:          "NotBtrieveFile",
	TransactionIsActive:     "TransactionIsActive",
	OperationNotAllowed:     "OperationNotAllowed",
	InvalidRecordAddress:    "InvalidRecordAddress",
	AccessDenied:            "AccessDenied",
	InvalidInterface:        "InvalidInterface",
	FileAlreadyExists:       "FileAlreadyExists",
}

// String returns the status name, or ResponseCode(n) for codes this package
// does not know about.
func (rc ResponseCode) String() string {
	if name, ok := responseNames[rc]; ok {
		return name
	}
	return fmt.Sprintf("ResponseCode(%d)", int32(rc))
}
