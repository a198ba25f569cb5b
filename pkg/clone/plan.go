// Package clone is the bulk codeplug read/write engine (§4.F): it drives
// CloneReadRequest/CloneWriteRequest over an xcmp.Dispatcher according to
// a per-model iteration Plan, reporting progress as it goes.
package clone

import "github.com/n5dmr/trbo-xnl/pkg/codeplug"

// Plan is the ordered sequence of (zone, channel, data_type) record
// addresses a Reader or Writer will visit, in the fixed order §4.F
// requires: zones ascending, channels ascending within each zone, data
// types in identity-before-channel-before-scan/rx-group order.
type Plan []codeplug.RecordKey

// BuildPlan constructs the iteration plan for a radio with zoneCount
// zones, where channelsPerZone[i] gives the channel count of zone i, and
// contactCount contacts. Identity and scan/rx-group-list records are
// addressed at channel index 0 of each zone, since those record kinds are
// zone-scoped rather than per-channel; only DataTypeChannel repeats once
// per channel. Contacts are zone-independent, so they are addressed at
// zone 0 and appended once after every zone's records, one per contact
// index 0..contactCount-1.
func BuildPlan(zoneCount int, channelsPerZone []int, contactCount int) Plan {
	var plan Plan
	for zi := 0; zi < zoneCount; zi++ {
		zone := uint16(zi)
		plan = append(plan, codeplug.RecordKey{ZoneIndex: zone, ChannelIndex: 0, DataType: codeplug.DataTypeIdentity})

		channels := 0
		if zi < len(channelsPerZone) {
			channels = channelsPerZone[zi]
		}
		for ci := 0; ci < channels; ci++ {
			plan = append(plan, codeplug.RecordKey{ZoneIndex: zone, ChannelIndex: uint16(ci), DataType: codeplug.DataTypeChannel})
		}

		plan = append(plan, codeplug.RecordKey{ZoneIndex: zone, ChannelIndex: 0, DataType: codeplug.DataTypeScanList})
		plan = append(plan, codeplug.RecordKey{ZoneIndex: zone, ChannelIndex: 0, DataType: codeplug.DataTypeRxGroupList})
	}

	for ci := 0; ci < contactCount; ci++ {
		plan = append(plan, codeplug.RecordKey{ZoneIndex: 0, ChannelIndex: uint16(ci), DataType: codeplug.DataTypeContact})
	}

	return plan
}
