package codeplug

import "fmt"

// ChannelMode distinguishes analog from digital channels; digital channels
// carry the invariants about color_code/time_slot/contact_id below.
type ChannelMode int

const (
	ModeAnalog ChannelMode = iota
	ModeDigital
)

// AdmitCriteria gates when a channel is allowed to transmit.
type AdmitCriteria int

const (
	AdmitAlways AdmitCriteria = iota
	AdmitChannelFree
	AdmitColorCodeMatch
)

// Channel is one radio channel record. Field layout follows the
// byte-offset-commented style of the Anytone codeplug.Channel struct,
// adapted to the bit-offset descriptor this protocol's wire records
// actually use (see model_generic.go).
type Channel struct {
	Index         uint16      `json:"index"`
	Name          string      `json:"name"`
	Mode          ChannelMode `json:"mode"`
	RxFrequencyHz uint32      `json:"rx_frequency_hz"`
	TxFrequencyHz uint32      `json:"tx_frequency_hz"`
	ColorCode     byte        `json:"color_code"`
	TimeSlot      byte        `json:"time_slot"`
	ContactID     uint32      `json:"contact_id"`
	ScanListIndex uint16      `json:"scan_list_index"` // 0 means "none"
	RxGroupIndex  uint16      `json:"rx_group_index"`  // 0 means "none"
	CanTransmit   bool        `json:"can_transmit"`
	TOTSeconds    uint16      `json:"tot_seconds"` // transmit time-out timer, 0 means "disabled"

	AdmitCriteria     AdmitCriteria `json:"admit_criteria"`
	EmergencyAlarm    bool          `json:"emergency_alarm"`
	EmergencySystemID uint8         `json:"emergency_system_id"` // index into the codeplug's emergency system table, 0 means "none"
}

// NewChannel validates and constructs a Channel per §4.G's construction
// invariants. rx_frequency_hz must be nonzero unless the channel is
// receive-only; digital channels that can transmit must carry a nonzero
// contact_id.
func NewChannel(c Channel) (Channel, error) {
	if c.RxFrequencyHz == 0 && c.CanTransmit {
		return Channel{}, fmt.Errorf("codeplug: channel %q: rx_frequency_hz must be nonzero", c.Name)
	}
	if c.ColorCode > 15 {
		return Channel{}, fmt.Errorf("codeplug: channel %q: color_code %d out of range 0..15", c.Name, c.ColorCode)
	}
	if c.TimeSlot != 1 && c.TimeSlot != 2 {
		return Channel{}, fmt.Errorf("codeplug: channel %q: time_slot %d must be 1 or 2", c.Name, c.TimeSlot)
	}
	if c.Mode == ModeDigital && c.CanTransmit && c.ContactID == 0 {
		return Channel{}, fmt.Errorf("codeplug: channel %q: contact_id must be nonzero for a transmitting digital channel", c.Name)
	}
	return c, nil
}

// Contact is a digital contact (private call, group call, or all call).
type Contact struct {
	ID     uint32 `json:"id"`
	Name   string `json:"name"`
	Type   byte   `json:"type"` // 0=group, 1=private, 2=all-call
	CallID uint32 `json:"call_id"`
}

// RxGroupList groups contacts a channel should monitor on its timeslot.
type RxGroupList struct {
	Index      uint16   `json:"index"`
	Name       string   `json:"name"`
	ContactIDs []uint32 `json:"contact_ids"`
}

// ScanList groups channel indices scanned together.
type ScanList struct {
	Index      uint16   `json:"index"`
	Name       string   `json:"name"`
	ChannelIDs []uint16 `json:"channel_ids"`
}

// Zone groups channels presented together on the radio's display. ID is the
// on-wire zone number used for CloneRead/CloneWrite addressing; Position is
// the display ordering shown in the radio's menu. They usually coincide but
// are not guaranteed to: a CPS codeplug can reorder zones in the menu
// without renumbering their wire records.
type Zone struct {
	ID       uint16    `json:"id"`
	Position uint16    `json:"position"`
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
}

// Codeplug is the fully decoded, semantic configuration for one radio.
type Codeplug struct {
	RadioID      uint32        `json:"radio_id"`
	Zones        []Zone        `json:"zones"`
	Contacts     []Contact     `json:"contacts"`
	ScanLists    []ScanList    `json:"scan_lists"`
	RxGroupLists []RxGroupList `json:"rx_group_lists"`
}

// ChannelByIndex looks up a channel across all zones by its flat index,
// used by the validator and comparator to resolve cross-references.
func (cp Codeplug) ChannelByIndex(idx uint16) (Channel, bool) {
	for _, z := range cp.Zones {
		for _, c := range z.Channels {
			if c.Index == idx {
				return c, true
			}
		}
	}
	return Channel{}, false
}

// ContactByID looks up a contact by its ID.
func (cp Codeplug) ContactByID(id uint32) (Contact, bool) {
	for _, c := range cp.Contacts {
		if c.ID == id {
			return c, true
		}
	}
	return Contact{}, false
}
