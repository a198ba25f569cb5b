package codeplug

import "fmt"

// DataType distinguishes the record kinds a clone operation addresses.
// The concrete wire value (used as xcmp.CloneReadRequest.DataType) is
// model-specific and [NEEDS VERIFICATION] per spec.md §4.F; these values
// are this implementation's assumed assignment, documented in DESIGN.md.
type DataType byte

const (
	DataTypeIdentity    DataType = 0x00
	DataTypeChannel     DataType = 0x01
	DataTypeScanList    DataType = 0x02
	DataTypeRxGroupList DataType = 0x03
	DataTypeContact     DataType = 0x04
)

// orderedDataTypes is the fixed data-type iteration order §4.F requires:
// identity fields before per-channel fields before scan/rx-group lists.
// Contact records are zone-independent, so they are addressed and
// iterated separately by BuildPlan rather than fitting this per-zone
// ordering.
var orderedDataTypes = []DataType{DataTypeIdentity, DataTypeChannel, DataTypeScanList, DataTypeRxGroupList}

// RecordKey addresses one (zone, channel, data_type) wire record, matching
// the CloneReadRequest/CloneWriteRequest tuple of §4.F.
type RecordKey struct {
	ZoneIndex    uint16
	ChannelIndex uint16
	DataType     DataType
}

// RawCodeplug holds the undecoded bytes read back from or to be written to
// the radio, keyed by RecordKey, before/after the semantic Decode/Encode
// pass. pkg/clone only ever produces/consumes RawCodeplug; it has no
// knowledge of field layout.
type RawCodeplug struct {
	Records map[RecordKey][]byte
}

// NewRawCodeplug returns an empty RawCodeplug ready to receive records.
func NewRawCodeplug() *RawCodeplug {
	return &RawCodeplug{Records: make(map[RecordKey][]byte)}
}

// Put records the bytes read for one addressed slot.
func (r *RawCodeplug) Put(key RecordKey, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.Records[key] = cp
}

// Get returns the bytes stored for key, if any.
func (r *RawCodeplug) Get(key RecordKey) ([]byte, bool) {
	v, ok := r.Records[key]
	return v, ok
}

// Decode converts the raw wire records into a semantic Codeplug using
// models to interpret each DataType's bytes. Zones are reconstructed from
// the set of distinct zone indices observed among DataTypeChannel keys;
// a zone's scan list and rx group list are attached by matching
// ZoneIndex, and contacts are collected independently of zone.
func Decode(models ModelSet, raw *RawCodeplug) (Codeplug, error) {
	zoneChannels := make(map[uint16][]Channel)
	zoneScanLists := make(map[uint16]ScanList)
	zoneRxGroups := make(map[uint16]RxGroupList)
	var zoneOrder []uint16
	seenZone := make(map[uint16]bool)

	var radioID uint32
	haveRadioID := false
	contactsByIndex := make(map[uint16]Contact)
	var contactOrder []uint16

	for key, data := range raw.Records {
		switch key.DataType {
		case DataTypeChannel:
			fields, err := DecodeChannelRecord(models.Channel, data)
			if err != nil {
				return Codeplug{}, fmt.Errorf("codeplug: decode channel (zone %d, channel %d): %w", key.ZoneIndex, key.ChannelIndex, err)
			}
			ch, err := channelFromFields(key.ChannelIndex, fields)
			if err != nil {
				return Codeplug{}, err
			}
			zoneChannels[key.ZoneIndex] = append(zoneChannels[key.ZoneIndex], ch)
			if !seenZone[key.ZoneIndex] {
				seenZone[key.ZoneIndex] = true
				zoneOrder = append(zoneOrder, key.ZoneIndex)
			}

		case DataTypeIdentity:
			fields, err := DecodeRecord(models.Identity, data)
			if err != nil {
				return Codeplug{}, fmt.Errorf("codeplug: decode identity (zone %d): %w", key.ZoneIndex, err)
			}
			if !haveRadioID {
				radioID = uint32(fields["radio_id"].(uint64))
				haveRadioID = true
			}

		case DataTypeScanList:
			fields, err := DecodeRecord(models.ScanList, data)
			if err != nil {
				return Codeplug{}, fmt.Errorf("codeplug: decode scan list (zone %d): %w", key.ZoneIndex, err)
			}
			zoneScanLists[key.ZoneIndex] = scanListFromFields(key.ZoneIndex, fields)

		case DataTypeRxGroupList:
			fields, err := DecodeRecord(models.RxGroupList, data)
			if err != nil {
				return Codeplug{}, fmt.Errorf("codeplug: decode rx group list (zone %d): %w", key.ZoneIndex, err)
			}
			zoneRxGroups[key.ZoneIndex] = rxGroupListFromFields(key.ZoneIndex, fields)

		case DataTypeContact:
			fields, err := DecodeRecord(models.Contact, data)
			if err != nil {
				return Codeplug{}, fmt.Errorf("codeplug: decode contact %d: %w", key.ChannelIndex, err)
			}
			contactsByIndex[key.ChannelIndex] = contactFromFields(fields)
			contactOrder = append(contactOrder, key.ChannelIndex)
		}
	}

	cp := Codeplug{RadioID: radioID}
	for _, zi := range sortedUint16(zoneOrder) {
		cp.Zones = append(cp.Zones, Zone{
			ID:       zi,
			Position: zi,
			Name:     fmt.Sprintf("Zone %d", zi+1),
			Channels: zoneChannels[zi],
		})
		if sl, ok := zoneScanLists[zi]; ok {
			cp.ScanLists = append(cp.ScanLists, sl)
		}
		if rg, ok := zoneRxGroups[zi]; ok {
			cp.RxGroupLists = append(cp.RxGroupLists, rg)
		}
	}
	for _, ci := range sortedUint16(contactOrder) {
		cp.Contacts = append(cp.Contacts, contactsByIndex[ci])
	}
	return cp, nil
}

func sortedUint16(in []uint16) []uint16 {
	out := make([]uint16, len(in))
	copy(out, in)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

func channelFromFields(index uint16, f map[string]any) (Channel, error) {
	mode := ModeAnalog
	if v, _ := f["mode"].(uint64); v == 1 {
		mode = ModeDigital
	}
	canTx, _ := f["can_transmit"].(bool)
	emergencyAlarm, _ := f["emergency_alarm"].(bool)
	return NewChannel(Channel{
		Index:             index,
		Name:              f["name"].(string),
		Mode:              mode,
		RxFrequencyHz:     uint32(f["rx_frequency_hz"].(uint64)),
		TxFrequencyHz:     uint32(f["tx_frequency_hz"].(uint64)),
		ColorCode:         byte(f["color_code"].(uint64)),
		TimeSlot:          byte(f["time_slot"].(uint64)),
		ContactID:         uint32(f["contact_id"].(uint64)),
		ScanListIndex:     uint16(f["scan_list_index"].(uint64)),
		RxGroupIndex:      uint16(f["rx_group_index"].(uint64)),
		CanTransmit:       canTx,
		TOTSeconds:        uint16(f["tot_seconds"].(uint64)),
		AdmitCriteria:     AdmitCriteria(f["admit_criteria"].(uint64)),
		EmergencyAlarm:    emergencyAlarm,
		EmergencySystemID: uint8(f["emergency_system_id"].(uint64)),
	})
}

func scanListFromFields(zone uint16, f map[string]any) ScanList {
	sl := ScanList{Index: zone, Name: f["name"].(string)}
	for i := 0; i < scanListMaxChannels; i++ {
		v := f[fmt.Sprintf("channel_%d", i)].(uint64)
		if v == 0 {
			continue
		}
		sl.ChannelIDs = append(sl.ChannelIDs, uint16(v-1))
	}
	return sl
}

func rxGroupListFromFields(zone uint16, f map[string]any) RxGroupList {
	rg := RxGroupList{Index: zone, Name: f["name"].(string)}
	for i := 0; i < rxGroupMaxContacts; i++ {
		v := f[fmt.Sprintf("contact_%d", i)].(uint64)
		if v == 0 {
			continue
		}
		rg.ContactIDs = append(rg.ContactIDs, uint32(v))
	}
	return rg
}

func contactFromFields(f map[string]any) Contact {
	return Contact{
		ID:     uint32(f["id"].(uint64)),
		Name:   f["name"].(string),
		Type:   byte(f["type"].(uint64)),
		CallID: uint32(f["call_id"].(uint64)),
	}
}

// channelValuesFromChannel builds the EncodeChannelRecord values map for
// one Channel, the inverse of channelFromFields.
func channelValuesFromChannel(c Channel) map[string]any {
	mode := uint64(0)
	if c.Mode == ModeDigital {
		mode = 1
	}
	return map[string]any{
		"name":                c.Name,
		"mode":                mode,
		"rx_frequency_hz":     uint64(c.RxFrequencyHz),
		"tx_frequency_hz":     uint64(c.TxFrequencyHz),
		"color_code":          uint64(c.ColorCode),
		"time_slot":           uint64(c.TimeSlot),
		"contact_id":          uint64(c.ContactID),
		"scan_list_index":     uint64(c.ScanListIndex),
		"rx_group_index":      uint64(c.RxGroupIndex),
		"can_transmit":        c.CanTransmit,
		"tot_seconds":         uint64(c.TOTSeconds),
		"admit_criteria":      uint64(c.AdmitCriteria),
		"emergency_alarm":     c.EmergencyAlarm,
		"emergency_system_id": uint64(c.EmergencySystemID),
	}
}

func scanListValues(sl ScanList) map[string]any {
	values := map[string]any{"name": sl.Name}
	slots := make([]uint64, scanListMaxChannels)
	for i, id := range sl.ChannelIDs {
		if i >= scanListMaxChannels {
			break
		}
		slots[i] = uint64(id) + 1
	}
	for i, v := range slots {
		values[fmt.Sprintf("channel_%d", i)] = v
	}
	return values
}

func rxGroupListValues(rg RxGroupList) map[string]any {
	values := map[string]any{"name": rg.Name}
	slots := make([]uint32, rxGroupMaxContacts)
	for i, id := range rg.ContactIDs {
		if i >= rxGroupMaxContacts {
			break
		}
		slots[i] = id
	}
	for i, v := range slots {
		values[fmt.Sprintf("contact_%d", i)] = uint64(v)
	}
	return values
}

func contactValues(c Contact) map[string]any {
	return map[string]any{
		"name":    c.Name,
		"id":      uint64(c.ID),
		"type":    uint64(c.Type),
		"call_id": uint64(c.CallID),
	}
}

// Encode packs cp back into wire records using models, the inverse of
// Decode, per §4.F write's "pack the parsed codeplug back into the wire
// format using the inverse of the read layout." An identity record is
// emitted for every zone (radio_id is zone-independent, but §4.F addresses
// it per zone the same way read does), scan lists and rx group lists are
// emitted keyed by their zone Index, and contacts are addressed by their
// position in cp.Contacts.
func Encode(models ModelSet, cp Codeplug) (*RawCodeplug, error) {
	raw := NewRawCodeplug()

	for _, z := range cp.Zones {
		idData, err := EncodeRecord(models.Identity, map[string]any{"radio_id": uint64(cp.RadioID)})
		if err != nil {
			return nil, fmt.Errorf("codeplug: encode identity (zone %d): %w", z.ID, err)
		}
		raw.Put(RecordKey{ZoneIndex: z.ID, ChannelIndex: 0, DataType: DataTypeIdentity}, idData)

		for _, c := range z.Channels {
			data, err := EncodeChannelRecord(models.Channel, channelValuesFromChannel(c))
			if err != nil {
				return nil, fmt.Errorf("codeplug: encode channel (zone %d, channel %d): %w", z.ID, c.Index, err)
			}
			raw.Put(RecordKey{ZoneIndex: z.ID, ChannelIndex: c.Index, DataType: DataTypeChannel}, data)
		}
	}

	for _, sl := range cp.ScanLists {
		data, err := EncodeRecord(models.ScanList, scanListValues(sl))
		if err != nil {
			return nil, fmt.Errorf("codeplug: encode scan list (zone %d): %w", sl.Index, err)
		}
		raw.Put(RecordKey{ZoneIndex: sl.Index, ChannelIndex: 0, DataType: DataTypeScanList}, data)
	}

	for _, rg := range cp.RxGroupLists {
		data, err := EncodeRecord(models.RxGroupList, rxGroupListValues(rg))
		if err != nil {
			return nil, fmt.Errorf("codeplug: encode rx group list (zone %d): %w", rg.Index, err)
		}
		raw.Put(RecordKey{ZoneIndex: rg.Index, ChannelIndex: 0, DataType: DataTypeRxGroupList}, data)
	}

	for i, c := range cp.Contacts {
		data, err := EncodeRecord(models.Contact, contactValues(c))
		if err != nil {
			return nil, fmt.Errorf("codeplug: encode contact %d: %w", i, err)
		}
		raw.Put(RecordKey{ZoneIndex: 0, ChannelIndex: uint16(i), DataType: DataTypeContact}, data)
	}

	return raw, nil
}
