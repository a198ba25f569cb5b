package validate

import (
	"fmt"

	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
)

// MaxTOTSeconds is the §4.H transmit time-out timer ceiling; channels
// above it are warned about, not rejected.
const MaxTOTSeconds = 600

// band is a known amateur or commercial VHF/UHF allocation. Ranges are
// illustrative rather than a regulatory database: §4.G only asks that
// frequencies fall "in a known amateur or commercial band", so this
// package ships a short, documented table rather than a live allocation
// feed.
type band struct {
	name   string
	lowHz  uint32
	highHz uint32
}

var knownBands = []band{
	{"amateur 2m", 144_000_000, 148_000_000},
	{"amateur 70cm", 420_000_000, 450_000_000},
	{"VHF business/public-safety", 150_000_000, 174_000_000},
	{"UHF business/public-safety", 450_000_000, 470_000_000},
	{"UHF T-band", 470_000_000, 512_000_000},
}

func inKnownBand(hz uint32) bool {
	for _, b := range knownBands {
		if hz >= b.lowHz && hz <= b.highHz {
			return true
		}
	}
	return false
}

// Validate runs the pre-write sanity checks against cp, accumulating every
// finding rather than stopping at the first since a validator needs to
// report the whole picture.
func Validate(cp codeplug.Codeplug) Result {
	var r Result

	if cp.RadioID < 1 || cp.RadioID > 16_777_215 {
		r.errorf("Radio Identity", "radio_id", "radio ID %d out of range 1..16777215", cp.RadioID)
	}

	zoneNames := make(map[string]int)
	channelNames := make(map[string]int)
	contactNames := make(map[string]int)

	for _, z := range cp.Zones {
		zoneLoc := fmt.Sprintf("zone %d", z.ID)
		if z.Name == "" {
			r.errorf("Zone", zoneLoc, "zone name is empty")
		} else {
			zoneNames[z.Name]++
		}

		for _, c := range z.Channels {
			chLoc := fmt.Sprintf("zone %d / channel %d", z.ID, c.Index)
			if c.Name == "" {
				r.errorf("Channel", chLoc, "channel name is empty")
			} else {
				channelNames[c.Name]++
			}

			if !inKnownBand(c.RxFrequencyHz) {
				r.warnf("Channel", chLoc, "rx_frequency_hz %d Hz is outside any known amateur/commercial band", c.RxFrequencyHz)
			}
			if c.CanTransmit && !inKnownBand(c.TxFrequencyHz) {
				r.warnf("Channel", chLoc, "tx_frequency_hz %d Hz is outside any known amateur/commercial band", c.TxFrequencyHz)
			}

			if c.ColorCode > 15 {
				r.errorf("Channel", chLoc, "color_code %d out of range 0..15", c.ColorCode)
			}
			if c.Mode == codeplug.ModeDigital && c.TimeSlot != 1 && c.TimeSlot != 2 {
				r.errorf("Channel", chLoc, "time_slot %d must be 1 or 2", c.TimeSlot)
			}

			if c.TOTSeconds > MaxTOTSeconds {
				r.warnf("Channel", chLoc, "tot_seconds %d exceeds %d s", c.TOTSeconds, MaxTOTSeconds)
			}

			if c.Mode == codeplug.ModeDigital && c.ContactID != 0 {
				if _, ok := cp.ContactByID(c.ContactID); !ok {
					r.errorf("Channel", chLoc, "contact_id %d does not resolve to any contact", c.ContactID)
				}
			}
		}
	}

	for _, ct := range cp.Contacts {
		if ct.Name != "" {
			contactNames[ct.Name]++
		}
	}

	for _, rgl := range cp.RxGroupLists {
		loc := fmt.Sprintf("rx group list %d", rgl.Index)
		for _, cid := range rgl.ContactIDs {
			if _, ok := cp.ContactByID(cid); !ok {
				r.errorf("Structure", loc, "contact_id %d does not resolve to any contact", cid)
			}
		}
	}

	warnDuplicates(&r, "Zone", zoneNames)
	warnDuplicates(&r, "Channel", channelNames)
	warnDuplicates(&r, "Structure", contactNames)

	return r
}

func warnDuplicates(r *Result, category string, names map[string]int) {
	for name, n := range names {
		if n > 1 {
			r.warnf(category, name, "name %q used by %d records", name, n)
		}
	}
}
