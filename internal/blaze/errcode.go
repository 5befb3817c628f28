package blaze

// Server error codes, carried over from the real client's Blaze error
// table so clients render the messages they already know.
const (
	ErrServerUnavailable        uint16 = 0x0
	ErrEmailNotFound            uint16 = 0xB
	ErrWrongPassword            uint16 = 0xC
	ErrInvalidSession           uint16 = 0xD
	ErrEmailAlreadyInUse        uint16 = 0x0F
	ErrAgeRestriction           uint16 = 0x10
	ErrInvalidInformation       uint16 = 0x11
	ErrInvalidEmail             uint16 = 0x12
	ErrBannedAccount            uint16 = 0x13
	ErrInvalidUser              uint16 = 0x15
	ErrEntitlementsMissing      uint16 = 0x1C
	ErrAuthenticationRequired   uint16 = 0x14
	ErrSystem                   uint16 = 0x4000
	ErrCommandNotFound          uint16 = 0x4001
	ErrGameNotFound             uint16 = 0x4103
	ErrSlotFull                 uint16 = 0x4104
	ErrTicketNotFound           uint16 = 0x4105
)

// MessageType is the low 4-bit message kind of a packet header.
type MessageType byte

const (
	MessageTypeRequest  MessageType = 0
	MessageTypeResponse MessageType = 1
	MessageTypeNotify   MessageType = 2
	MessageTypeError    MessageType = 3
)
