package xcmp

import (
	"encoding/binary"
	"fmt"
)

// ReplyHeader is the common first byte of every non-broadcast XCMP reply: an
// error code, 0x00 meaning success (§7 DeviceError).
type ReplyHeader struct {
	ErrorCode byte
}

// ParseReplyHeader reads the leading error byte shared by all XCMP replies.
func ParseReplyHeader(data []byte) (ReplyHeader, []byte, error) {
	if len(data) < 1 {
		return ReplyHeader{}, nil, fmt.Errorf("xcmp: reply payload empty, expected error byte")
	}
	return ReplyHeader{ErrorCode: data[0]}, data[1:], nil
}

// VersionInfoRequest queries firmware or part-number/type strings via the
// sub-type byte (§4.D, §4.E step 2).
type VersionInfoRequest struct {
	SubType byte
}

func (r VersionInfoRequest) Encode() []byte { return []byte{r.SubType} }

// VersionInfoReply carries the ASCII string the radio returned for the
// requested sub-type.
type VersionInfoReply struct {
	ReplyHeader
	Value string
}

func ParseVersionInfoReply(data []byte) (VersionInfoReply, error) {
	hdr, rest, err := ParseReplyHeader(data)
	if err != nil {
		return VersionInfoReply{}, err
	}
	return VersionInfoReply{ReplyHeader: hdr, Value: trimNulASCII(rest)}, nil
}

// StringReply is the shape of OpModel/OpSerial/OpTanapaNumber replies: an
// error byte followed by an ASCII string.
type StringReply struct {
	ReplyHeader
	Value string
}

func ParseStringReply(data []byte) (StringReply, error) {
	hdr, rest, err := ParseReplyHeader(data)
	if err != nil {
		return StringReply{}, err
	}
	return StringReply{ReplyHeader: hdr, Value: trimNulASCII(rest)}, nil
}

// SecurityKeyReply carries the 16-byte device descriptor token.
type SecurityKeyReply struct {
	ReplyHeader
	Token [16]byte
}

func ParseSecurityKeyReply(data []byte) (SecurityKeyReply, error) {
	hdr, rest, err := ParseReplyHeader(data)
	if err != nil {
		return SecurityKeyReply{}, err
	}
	if len(rest) < 16 {
		return SecurityKeyReply{}, fmt.Errorf("xcmp: SecurityKeyReply payload too short: %d bytes", len(rest))
	}
	var r SecurityKeyReply
	r.ReplyHeader = hdr
	copy(r.Token[:], rest[:16])
	return r, nil
}

// CapabilitiesReply carries an opaque capabilities bitfield with no
// documented bit enumeration, so it is retained as raw bytes for the
// caller to interpret per radio family.
type CapabilitiesReply struct {
	ReplyHeader
	Raw []byte
}

func ParseCapabilitiesReply(data []byte) (CapabilitiesReply, error) {
	hdr, rest, err := ParseReplyHeader(data)
	if err != nil {
		return CapabilitiesReply{}, err
	}
	raw := make([]byte, len(rest))
	copy(raw, rest)
	return CapabilitiesReply{ReplyHeader: hdr, Raw: raw}, nil
}

// ProgramModeRequest enters (action=0x01) or exits (action=0x00) programming
// mode (§4.E steps 3 and the failure-path exit).
type ProgramModeRequest struct {
	Action byte
}

func (r ProgramModeRequest) Encode() []byte { return []byte{r.Action} }

const (
	ProgramModeEnter byte = 0x01
	ProgramModeExit  byte = 0x00
)

// ProgramModeReply carries only the shared error byte.
type ProgramModeReply struct {
	ReplyHeader
}

func ParseProgramModeReply(data []byte) (ProgramModeReply, error) {
	hdr, _, err := ParseReplyHeader(data)
	if err != nil {
		return ProgramModeReply{}, err
	}
	return ProgramModeReply{ReplyHeader: hdr}, nil
}

// ReadRadioKeyReply carries the 32-byte radio key material (§4.E step 4).
type ReadRadioKeyReply struct {
	ReplyHeader
	Key [32]byte
}

func ParseReadRadioKeyReply(data []byte) (ReadRadioKeyReply, error) {
	hdr, rest, err := ParseReplyHeader(data)
	if err != nil {
		return ReadRadioKeyReply{}, err
	}
	if len(rest) < 32 {
		return ReadRadioKeyReply{}, fmt.Errorf("xcmp: ReadRadioKeyReply payload too short: %d bytes", len(rest))
	}
	var r ReadRadioKeyReply
	r.ReplyHeader = hdr
	copy(r.Key[:], rest[:32])
	return r, nil
}

// UnlockSecurityRequest carries the 32-byte TEA-encrypted unlock token
// (§4.E step 6).
type UnlockSecurityRequest struct {
	Token [32]byte
}

func (r UnlockSecurityRequest) Encode() []byte {
	out := make([]byte, 32)
	copy(out, r.Token[:])
	return out
}

// UnlockSecurityReply carries only the shared error byte; 0x01 means wrong
// algorithm/key, 0x06 means locked out (§4.E step 6, §7).
type UnlockSecurityReply struct {
	ReplyHeader
}

func ParseUnlockSecurityReply(data []byte) (UnlockSecurityReply, error) {
	hdr, _, err := ParseReplyHeader(data)
	if err != nil {
		return UnlockSecurityReply{}, err
	}
	return UnlockSecurityReply{ReplyHeader: hdr}, nil
}

// UnlockPartitionRequest selects the target partition (§4.E step 7).
type UnlockPartitionRequest struct {
	Partition byte
}

func (r UnlockPartitionRequest) Encode() []byte { return []byte{r.Partition} }

const (
	PartitionApplication byte = 0x01
	PartitionCodeplug    byte = 0x02
)

// UnlockPartitionReply carries only the shared error byte.
type UnlockPartitionReply struct {
	ReplyHeader
}

func ParseUnlockPartitionReply(data []byte) (UnlockPartitionReply, error) {
	hdr, _, err := ParseReplyHeader(data)
	if err != nil {
		return UnlockPartitionReply{}, err
	}
	return UnlockPartitionReply{ReplyHeader: hdr}, nil
}

// CloneReadRequest addresses one (zone, channel, data_type) record for bulk
// read, per the wire layout given in §4.F.
type CloneReadRequest struct {
	ZoneIndex    uint16
	ChannelIndex uint16
	DataType     byte
}

func (r CloneReadRequest) Encode() []byte {
	buf := make([]byte, 8)
	buf[0] = 0x80
	buf[1] = 0x01
	binary.BigEndian.PutUint16(buf[2:4], r.ZoneIndex)
	buf[4] = 0x80
	buf[5] = 0x02
	binary.BigEndian.PutUint16(buf[6:8], r.ChannelIndex)
	return append(buf, 0x00, r.DataType)
}

// CloneReadReply carries the raw record bytes for one addressed slot.
type CloneReadReply struct {
	ReplyHeader
	Data []byte
}

// cloneReadIndexEchoSize is the fixed marker/index echo skipped after the
// error byte on a successful CloneReadReply (§4.F: "skip the marker/index
// echo (11 bytes)").
const cloneReadIndexEchoSize = 11

func ParseCloneReadReply(data []byte) (CloneReadReply, error) {
	hdr, rest, err := ParseReplyHeader(data)
	if err != nil {
		return CloneReadReply{}, err
	}
	if hdr.ErrorCode != ErrOK {
		return CloneReadReply{ReplyHeader: hdr}, nil
	}
	if len(rest) < cloneReadIndexEchoSize+2 {
		return CloneReadReply{}, fmt.Errorf("xcmp: CloneReadReply too short for index echo + length")
	}
	rest = rest[cloneReadIndexEchoSize:]
	dataLen := int(binary.BigEndian.Uint16(rest[0:2]))
	rest = rest[2:]
	if len(rest) < dataLen {
		return CloneReadReply{}, fmt.Errorf("xcmp: CloneReadReply declared %d bytes, has %d", dataLen, len(rest))
	}
	out := make([]byte, dataLen)
	copy(out, rest[:dataLen])
	return CloneReadReply{ReplyHeader: hdr, Data: out}, nil
}

// CloneWriteRequest transfers one block of the packed codeplug during write
// (§4.F). BlockIndex is model-specific framing, [NEEDS VERIFICATION] per the
// spec; this implementation treats it as a simple ascending sequence number.
type CloneWriteRequest struct {
	BlockIndex uint16
	Data       []byte
}

func (r CloneWriteRequest) Encode() []byte {
	buf := make([]byte, 2, 2+len(r.Data))
	binary.BigEndian.PutUint16(buf, r.BlockIndex)
	return append(buf, r.Data...)
}

// CloneWriteReply carries only the shared error byte.
type CloneWriteReply struct {
	ReplyHeader
}

func ParseCloneWriteReply(data []byte) (CloneWriteReply, error) {
	hdr, _, err := ParseReplyHeader(data)
	if err != nil {
		return CloneWriteReply{}, err
	}
	return CloneWriteReply{ReplyHeader: hdr}, nil
}

// CRCValidateRequest asks the radio to check the CRC of the codeplug image
// just written (§4.F write step "validating CRC"). It carries no payload;
// [NEEDS VERIFICATION] per spec.md, since the framing of this step is not
// given concretely.
type CRCValidateRequest struct{}

func (CRCValidateRequest) Encode() []byte { return nil }

// CRCValidateReply carries only the shared error byte; a non-zero code
// means the written image failed its CRC check.
type CRCValidateReply struct {
	ReplyHeader
}

func ParseCRCValidateReply(data []byte) (CRCValidateReply, error) {
	hdr, _, err := ParseReplyHeader(data)
	if err != nil {
		return CRCValidateReply{}, err
	}
	return CRCValidateReply{ReplyHeader: hdr}, nil
}

// DeployRequest commits a written codeplug image (§4.F write step
// "deploying"). No payload; [NEEDS VERIFICATION] per spec.md.
type DeployRequest struct{}

func (DeployRequest) Encode() []byte { return nil }

// DeployReply carries only the shared error byte.
type DeployReply struct {
	ReplyHeader
}

func ParseDeployReply(data []byte) (DeployReply, error) {
	hdr, _, err := ParseReplyHeader(data)
	if err != nil {
		return DeployReply{}, err
	}
	return DeployReply{ReplyHeader: hdr}, nil
}

// DeviceInitStatusBroadcast is the 0xB400 handshake broadcast. Status
// progresses 0x02, 0x0F, ..., 0x01 (complete); the host must reply to the
// first occurrence with minimal capabilities and must not emit any XCMP
// request until status 0x01 is observed (§4.D).
type DeviceInitStatusBroadcast struct {
	Status byte
}

func ParseDeviceInitStatusBroadcast(data []byte) (DeviceInitStatusBroadcast, error) {
	if len(data) < 1 {
		return DeviceInitStatusBroadcast{}, fmt.Errorf("xcmp: DeviceInitStatusBroadcast payload empty")
	}
	return DeviceInitStatusBroadcast{Status: data[0]}, nil
}

// InitStatusComplete is the status value that opens the init gate.
const InitStatusComplete byte = 0x01

func trimNulASCII(b []byte) string {
	n := len(b)
	for i, c := range b {
		if c == 0 {
			n = i
			break
		}
	}
	return string(b[:n])
}
