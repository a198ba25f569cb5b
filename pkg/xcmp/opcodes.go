// Package xcmp implements the XCMP application layer carried inside XNL
// DataMessages: opcode request/reply pairing, broadcast routing, and the
// device-init handshake gate (§4.D).
package xcmp

// Opcode identifies an XCMP message. The low 12 bits name the operation; the
// reply/broadcast flags occupy the high bits (ReplyFlag, BroadcastFlag).
type Opcode uint16

// Flag bits applied to a request opcode to form its reply or broadcast form.
const (
	ReplyFlag     Opcode = 0x8000
	BroadcastFlag Opcode = 0xB000
)

// IsReply reports whether op carries ReplyFlag.
func (op Opcode) IsReply() bool { return op&ReplyFlag == ReplyFlag && op&BroadcastFlag != BroadcastFlag }

// IsBroadcast reports whether op carries BroadcastFlag.
func (op Opcode) IsBroadcast() bool { return op&BroadcastFlag == BroadcastFlag }

// Reply returns the reply-form opcode for a request opcode.
func (op Opcode) Reply() Opcode { return op | ReplyFlag }

// Broadcast returns the broadcast-form opcode for a request opcode.
func (op Opcode) Broadcast() Opcode { return op | BroadcastFlag }

// Request strips the reply/broadcast flags, returning the base opcode.
func (op Opcode) Request() Opcode { return op &^ (ReplyFlag | BroadcastFlag) }

// Core XCMP opcodes (§4.D).
const (
	OpRadioStatus      Opcode = 0x000E // sub-type byte selects remaining RadioStatus/RadioID fields
	OpVersionInfo      Opcode = 0x000F // sub-type selects firmware/part-number/type
	OpModel            Opcode = 0x0010 // model string, queried during identity (§4.E step 2)
	OpSerial           Opcode = 0x0011 // serial string, queried during identity (§4.E step 2)
	OpSecurityKey      Opcode = 0x0012
	OpTanapaNumber     Opcode = 0x001F
	OpLanguagePackInfo Opcode = 0x002C
	OpCapabilities     Opcode = 0x003D
	OpProgramMode      Opcode = 0x0106 // action 0x01 enter, 0x00 exit
	OpUnlockPartition  Opcode = 0x0108
	OpCloneWrite       Opcode = 0x0109
	OpCloneRead        Opcode = 0x010A
	OpPSDTAccess       Opcode = 0x010B
	OpCRCValidate      Opcode = 0x010C // post-write block CRC check, §4.F write step "validating CRC"
	OpDeploy           Opcode = 0x010D // commits a written codeplug, §4.F write step "deploying"
	OpComponentSession Opcode = 0x010F
	OpReadRadioKey     Opcode = 0x0300
	OpUnlockSecurity   Opcode = 0x0301
	OpDeviceInitStatus Opcode = 0x0400 // observed only in its broadcast form, 0xB400
)

// VersionInfo sub-types.
const (
	VersionInfoFirmware byte = 0x00
	VersionInfoType     byte = 0x41
)

// DeviceError codes observed in XCMP reply error bytes (§7).
const (
	ErrOK                  byte = 0x00
	ErrWrongAlgorithmOrKey byte = 0x01
	ErrIncorrectMode       byte = 0x02
	ErrReInitXNLRequired   byte = 0x03
	ErrSecurityLocked      byte = 0x06
)
