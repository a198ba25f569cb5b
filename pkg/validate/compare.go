package validate

import (
	"fmt"

	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
)

// Discrepancy is one mismatch found by Compare.
type Discrepancy struct {
	Category string // "Radio Identity", "Structure", "Zone", "Channel"
	Location string
	Expected string
	Actual   string
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("[%s] %s: expected %q, got %q", d.Category, d.Location, d.Expected, d.Actual)
}

// ComparisonResult is the outcome of Compare: it passes iff Discrepancies
// is empty (§4.H).
type ComparisonResult struct {
	Discrepancies []Discrepancy
}

func (r ComparisonResult) Passed() bool { return len(r.Discrepancies) == 0 }

func (r *ComparisonResult) mismatch(category, location string, expected, actual any) {
	r.Discrepancies = append(r.Discrepancies, Discrepancy{
		Category: category,
		Location: location,
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
	})
}

// Compare diffs original against readBack, the post-write clone read,
// producing every discrepancy rather than stopping at the first (§4.H:
// "read_codeplug, write_codeplug, post-write verification" requires the
// caller see the whole mismatch set, since it treats every discrepancy
// as a non-fatal warning rather than a single pass/fail bit).
func Compare(original, readBack codeplug.Codeplug) ComparisonResult {
	var r ComparisonResult

	if original.RadioID != readBack.RadioID {
		r.mismatch("Radio Identity", "radio_id", original.RadioID, readBack.RadioID)
	}

	if len(original.Zones) != len(readBack.Zones) {
		r.mismatch("Structure", "zone count", len(original.Zones), len(readBack.Zones))
	}

	byID := make(map[uint16]codeplug.Zone, len(readBack.Zones))
	for _, z := range readBack.Zones {
		byID[z.ID] = z
	}

	for _, wantZone := range original.Zones {
		loc := fmt.Sprintf("zone %d", wantZone.ID)
		gotZone, ok := byID[wantZone.ID]
		if !ok {
			r.mismatch("Zone", loc, "present", "missing")
			continue
		}
		if wantZone.Name != gotZone.Name {
			r.mismatch("Zone", loc+" name", wantZone.Name, gotZone.Name)
		}
		compareChannels(&r, wantZone, gotZone)
	}

	extraZones(&r, original, readBack)

	if len(original.Contacts) != len(readBack.Contacts) {
		r.mismatch("Structure", "contact count", len(original.Contacts), len(readBack.Contacts))
	}

	return r
}

func compareChannels(r *ComparisonResult, want, got codeplug.Zone) {
	gotByIdx := make(map[uint16]codeplug.Channel, len(got.Channels))
	for _, c := range got.Channels {
		gotByIdx[c.Index] = c
	}

	if len(want.Channels) != len(got.Channels) {
		r.mismatch("Structure", fmt.Sprintf("zone %d channel count", want.ID), len(want.Channels), len(got.Channels))
	}

	for _, wc := range want.Channels {
		loc := fmt.Sprintf("zone %d / channel %d", want.ID, wc.Index)
		gc, ok := gotByIdx[wc.Index]
		if !ok {
			r.mismatch("Channel", loc, "present", "missing")
			continue
		}
		if wc.Name != gc.Name {
			r.mismatch("Channel", loc+" name", wc.Name, gc.Name)
		}
		if wc.RxFrequencyHz != gc.RxFrequencyHz {
			r.mismatch("Channel", loc+" rx_frequency_hz", wc.RxFrequencyHz, gc.RxFrequencyHz)
		}
		if wc.TxFrequencyHz != gc.TxFrequencyHz {
			r.mismatch("Channel", loc+" tx_frequency_hz", wc.TxFrequencyHz, gc.TxFrequencyHz)
		}
		if wc.ColorCode != gc.ColorCode {
			r.mismatch("Channel", loc+" color_code", wc.ColorCode, gc.ColorCode)
		}
		if wc.TimeSlot != gc.TimeSlot {
			r.mismatch("Channel", loc+" time_slot", wc.TimeSlot, gc.TimeSlot)
		}
		if wc.ContactID != gc.ContactID {
			r.mismatch("Channel", loc+" contact_id", wc.ContactID, gc.ContactID)
		}
	}
}

func extraZones(r *ComparisonResult, original, readBack codeplug.Codeplug) {
	wantIndex := make(map[uint16]bool, len(original.Zones))
	for _, z := range original.Zones {
		wantIndex[z.ID] = true
	}
	for _, z := range readBack.Zones {
		if !wantIndex[z.ID] {
			r.mismatch("Zone", fmt.Sprintf("zone %d", z.ID), "absent", "present")
		}
	}
}
