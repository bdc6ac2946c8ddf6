package fcgx

import "fmt"

// FastCGI protocol constants.
const (
	headerLen  = 8 // FastCGI record header length in bytes
	version1   = 1 // FastCGI protocol version
	maxContent = 0xffff
	maxPadding = 7
)

// RecordType is a FastCGI record kind, as defined by the FastCGI 1.0 spec.
type RecordType uint8

const (
	BeginRequest    RecordType = 1
	AbortRequest    RecordType = 2
	EndRequestType  RecordType = 3
	Params          RecordType = 4
	Stdin           RecordType = 5
	Stdout          RecordType = 6
	Stderr          RecordType = 7
	Data            RecordType = 8
	GetValues       RecordType = 9
	GetValuesResult RecordType = 10
	UnknownType     RecordType = 11
)

var recordTypeNames = map[RecordType]string{
	BeginRequest:    "BEGIN_REQUEST",
	AbortRequest:    "ABORT_REQUEST",
	EndRequestType:  "END_REQUEST",
	Params:          "PARAMS",
	Stdin:           "STDIN",
	Stdout:          "STDOUT",
	Stderr:          "STDERR",
	Data:            "DATA",
	GetValues:       "GET_VALUES",
	GetValuesResult: "GET_VALUES_RESULT",
	UnknownType:     "UNKNOWN_TYPE",
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("RECORD_TYPE(%d)", uint8(t))
}

// normalizeRecordType maps an arbitrary wire byte to a known RecordType,
// folding anything unrecognised into UnknownType.
func normalizeRecordType(b uint8) RecordType {
	t := RecordType(b)
	if _, ok := recordTypeNames[t]; ok {
		return t
	}
	return UnknownType
}

// Role is the FastCGI application role requested in BEGIN_REQUEST.
type Role uint16

const (
	RoleResponder  Role = 1
	RoleAuthorizer Role = 2
	RoleFilter     Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleResponder:
		return "RESPONDER"
	case RoleAuthorizer:
		return "AUTHORIZER"
	case RoleFilter:
		return "FILTER"
	default:
		return fmt.Sprintf("ROLE(%d)", uint16(r))
	}
}

// ProtocolStatus is the status byte carried in END_REQUEST.
type ProtocolStatus uint8

const (
	RequestComplete ProtocolStatus = 0
	CantMpxConn     ProtocolStatus = 1
	Overloaded      ProtocolStatus = 2
	UnknownRole     ProtocolStatus = 3
)

func (s ProtocolStatus) String() string {
	switch s {
	case RequestComplete:
		return "REQUEST_COMPLETE"
	case CantMpxConn:
		return "CANT_MPX_CONN"
	case Overloaded:
		return "OVERLOADED"
	case UnknownRole:
		return "UNKNOWN_ROLE"
	default:
		return fmt.Sprintf("PROTOCOL_STATUS(%d)", uint8(s))
	}
}

// normalizeProtocolStatus folds any value outside the known set into
// UnknownRole.
func normalizeProtocolStatus(b uint8) ProtocolStatus {
	switch b {
	case uint8(RequestComplete), uint8(CantMpxConn), uint8(Overloaded), uint8(UnknownRole):
		return ProtocolStatus(b)
	default:
		return UnknownRole
	}
}

// Header is a FastCGI record header, as it appears on the wire.
type Header struct {
	Version       uint8
	Type          RecordType
	RequestID     uint16
	ContentLength uint16
	PaddingLength uint8
	Reserved      uint8
}

// paddingFor returns the padding length that makes headerLen+contentLength+n
// a multiple of 8.
func paddingFor(contentLength int) uint8 {
	return uint8((8 - (contentLength % 8)) % 8)
}

func newHeader(typ RecordType, requestID uint16, contentLength int) Header {
	return Header{
		Version:       version1,
		Type:          typ,
		RequestID:     requestID,
		ContentLength: uint16(contentLength),
		PaddingLength: paddingFor(contentLength),
	}
}
