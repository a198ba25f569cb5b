package codeplug

import (
	"fmt"

	"github.com/n5dmr/trbo-xnl/pkg/wire"
)

// ModelSet bundles the per-record-kind Models Decode/Encode need: one
// DataType addresses one record kind, and each kind has its own bit
// layout. Channel is the only one spec.md §4.G gives invariants for;
// Identity/ScanList/RxGroupList/Contact are this implementation's
// own illustrative layouts (see the Generic* vars below), the same way
// GenericChannelModel stands in for a family-specific channel model.
type ModelSet struct {
	Identity    Model
	Channel     Model
	ScanList    Model
	RxGroupList Model
	Contact     Model
}

// GenericModelSet is the ModelSet GenericChannelModel and its siblings
// form; used by cmd/trboctl and the default test fixtures.
var GenericModelSet = ModelSet{
	Identity:    GenericIdentityModel,
	Channel:     GenericChannelModel,
	ScanList:    GenericScanListModel,
	RxGroupList: GenericRxGroupListModel,
	Contact:     GenericContactModel,
}

const (
	listNameMaxLen      = 16 // bytes, UTF-16LE
	scanListMaxChannels = 16 // fixed channel-index slot count per scan list
	rxGroupMaxContacts  = 16 // fixed contact-ID slot count per rx group list
)

// GenericIdentityModel carries the one field Decode needs from the
// zone-scoped identity record to recover Codeplug.RadioID. A real radio
// answers the same radio_id for every zone's identity record; Decode
// keeps the first one it sees.
var GenericIdentityModel = Model{
	Name:    "generic-identity-v1",
	ByteLen: 4,
	Fields: []FieldDescriptor{
		{ID: "radio_id", BitOffset: 0, BitLength: 24, Type: ValueUint},
	},
}

// GenericScanListModel packs a zone's scan list as a name plus a fixed
// number of channel-index slots. Each used slot holds the channel index
// plus one, so that channel index 0 is representable; slot value 0 means
// "empty", the same convention Channel.ScanListIndex/RxGroupIndex already
// use for "none".
// [NEEDS VERIFICATION]: spec.md §4.F never gives a scan-list wire layout.
var GenericScanListModel = Model{
	Name:    "generic-scanlist-v1",
	ByteLen: listNameMaxLen + scanListMaxChannels*2,
	Fields:  append([]FieldDescriptor{nameField(listNameMaxLen)}, indexedFields("channel", scanListMaxChannels, listNameMaxLen*8, 16)...),
}

// GenericRxGroupListModel mirrors GenericScanListModel for a zone's
// rx group list, with 32-bit slots since Contact.ID is uint32.
var GenericRxGroupListModel = Model{
	Name:    "generic-rxgroup-v1",
	ByteLen: listNameMaxLen + rxGroupMaxContacts*4,
	Fields:  append([]FieldDescriptor{nameField(listNameMaxLen)}, indexedFields("contact", rxGroupMaxContacts, listNameMaxLen*8, 32)...),
}

// GenericContactModel is one contact record: name, contact ID, call type,
// call ID. id is carried as an explicit field (rather than derived from the
// record's addressing index) since Contact.ID is a domain identifier other
// records (Channel.ContactID, RxGroupList.ContactIDs) reference by value,
// not by the contact's position in the contact list.
var GenericContactModel = Model{
	Name:    "generic-contact-v1",
	ByteLen: listNameMaxLen + 7,
	Fields: []FieldDescriptor{
		nameField(listNameMaxLen),
		{ID: "id", BitOffset: listNameMaxLen * 8, BitLength: 24, Type: ValueUint},
		{ID: "type", BitOffset: listNameMaxLen*8 + 24, BitLength: 8, Type: ValueUint},
		{ID: "call_id", BitOffset: listNameMaxLen*8 + 32, BitLength: 24, Type: ValueUint},
	},
}

func nameField(maxLen int) FieldDescriptor {
	return FieldDescriptor{ID: "name", BitOffset: 0, BitLength: maxLen * 8, Type: ValueString, StringEncoding: wire.UTF16LE, MaxLength: maxLen}
}

// indexedFields builds count fixed-width uint slots named prefix_0..
// prefix_(count-1), starting at startBitOffset. Used for the scan-list/
// rx-group-list fixed-capacity slot arrays.
func indexedFields(prefix string, count, startBitOffset, bitWidth int) []FieldDescriptor {
	fields := make([]FieldDescriptor, count)
	for i := 0; i < count; i++ {
		fields[i] = FieldDescriptor{
			ID:        fmt.Sprintf("%s_%d", prefix, i),
			BitOffset: startBitOffset + i*bitWidth,
			BitLength: bitWidth,
			Type:      ValueUint,
		}
	}
	return fields
}
