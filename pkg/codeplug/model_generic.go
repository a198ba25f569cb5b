package codeplug

import "github.com/n5dmr/trbo-xnl/pkg/wire"

// GenericChannelModel is a representative channel record layout: 36 bytes,
// frequencies in units of 100 Hz per §4.F ("divide by 10,000 for MHz",
// [NEEDS VERIFICATION] for some models), a 16-byte UTF-16LE name, and the
// invariant-bearing fields called out in §4.G packed into the low byte.
// Concrete radio families would supply their own Model; this one exists so
// Decode/Encode/the clone engine have a real layout to exercise in tests
// and as a template for adding family-specific models.
var GenericChannelModel = Model{
	Name:    "generic-channel-v1",
	ByteLen: 36,
	Fields: []FieldDescriptor{
		{ID: "rx_frequency_hz_100", BitOffset: 0, BitLength: 32, Type: ValueUint},
		{ID: "tx_frequency_hz_100", BitOffset: 32, BitLength: 32, Type: ValueUint},
		{ID: "color_code", BitOffset: 64, BitLength: 4, Type: ValueUint},
		{ID: "time_slot", BitOffset: 68, BitLength: 2, Type: ValueUint},
		{ID: "mode", BitOffset: 70, BitLength: 1, Type: ValueUint},
		{ID: "can_transmit", BitOffset: 71, BitLength: 1, Type: ValueBool},
		{ID: "contact_id", BitOffset: 72, BitLength: 24, Type: ValueUint},
		{ID: "scan_list_index", BitOffset: 96, BitLength: 16, Type: ValueUint},
		{ID: "rx_group_index", BitOffset: 112, BitLength: 16, Type: ValueUint},
		{ID: "name", BitOffset: 128, BitLength: 16 * 8, Type: ValueString, StringEncoding: wire.UTF16LE, MaxLength: 16},
		{ID: "tot_seconds", BitOffset: 256, BitLength: 16, Type: ValueUint},
		{ID: "admit_criteria", BitOffset: 272, BitLength: 2, Type: ValueUint},
		{ID: "emergency_alarm", BitOffset: 274, BitLength: 1, Type: ValueBool},
		{ID: "emergency_system_id", BitOffset: 280, BitLength: 8, Type: ValueUint},
	},
}

// DecodeChannelRecord decodes one channel record using m and applies the
// ×100 Hz frequency scaling §4.F describes, returning a field map whose
// rx_frequency_hz/tx_frequency_hz keys are already in Hz for channelFromFields.
func DecodeChannelRecord(m Model, record []byte) (map[string]any, error) {
	f, err := DecodeRecord(m, record)
	if err != nil {
		return nil, err
	}
	f["rx_frequency_hz"] = f["rx_frequency_hz_100"].(uint64) * 100
	f["tx_frequency_hz"] = f["tx_frequency_hz_100"].(uint64) * 100
	return f, nil
}

// EncodeChannelRecord is the inverse of DecodeChannelRecord: it expects
// rx_frequency_hz/tx_frequency_hz in Hz and packs them back into the
// model's ×100 Hz fields.
func EncodeChannelRecord(m Model, values map[string]any) ([]byte, error) {
	scaled := make(map[string]any, len(values)+2)
	for k, v := range values {
		scaled[k] = v
	}
	if hz, ok := values["rx_frequency_hz"].(uint64); ok {
		scaled["rx_frequency_hz_100"] = hz / 100
	}
	if hz, ok := values["tx_frequency_hz"].(uint64); ok {
		scaled["tx_frequency_hz_100"] = hz / 100
	}
	return EncodeRecord(m, scaled)
}
