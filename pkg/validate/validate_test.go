package validate

import (
	"testing"

	"github.com/n5dmr/trbo-xnl/pkg/codeplug"
)

func goodCodeplug() codeplug.Codeplug {
	return codeplug.Codeplug{
		RadioID: 1234567,
		Zones: []codeplug.Zone{
			{
				ID:   0,
				Name: "Home",
				Channels: []codeplug.Channel{
					{Index: 0, Name: "Simplex", Mode: codeplug.ModeAnalog, RxFrequencyHz: 146520000, TxFrequencyHz: 146520000, ColorCode: 1, TimeSlot: 1},
					{Index: 1, Name: "Repeater", Mode: codeplug.ModeDigital, RxFrequencyHz: 146940000, TxFrequencyHz: 146340000, ColorCode: 3, TimeSlot: 2, ContactID: 9, CanTransmit: true, TOTSeconds: 60},
				},
			},
		},
		Contacts: []codeplug.Contact{
			{ID: 9, Name: "Local Group", Type: 0, CallID: 9},
		},
	}
}

func TestValidate_Passes(t *testing.T) {
	r := Validate(goodCodeplug())
	if !r.Passed() {
		t.Fatalf("expected valid codeplug to pass, got issues: %v", r.Issues)
	}
}

func TestValidate_RejectsRadioIDOutOfRange(t *testing.T) {
	cp := goodCodeplug()
	cp.RadioID = 0
	r := Validate(cp)
	if r.Passed() {
		t.Fatal("expected radio_id=0 to fail validation")
	}
}

func TestValidate_RejectsRadioIDAboveRange(t *testing.T) {
	cp := goodCodeplug()
	cp.RadioID = 16_777_216
	r := Validate(cp)
	if r.Passed() {
		t.Fatal("expected radio_id above range to fail validation")
	}
}

func TestValidate_RejectsEmptyZoneName(t *testing.T) {
	cp := goodCodeplug()
	cp.Zones[0].Name = ""
	r := Validate(cp)
	if r.Passed() {
		t.Fatal("expected empty zone name to fail validation")
	}
}

func TestValidate_RejectsEmptyChannelName(t *testing.T) {
	cp := goodCodeplug()
	cp.Zones[0].Channels[0].Name = ""
	r := Validate(cp)
	if r.Passed() {
		t.Fatal("expected empty channel name to fail validation")
	}
}

func TestValidate_WarnsOutOfBandFrequency(t *testing.T) {
	cp := goodCodeplug()
	cp.Zones[0].Channels[0].RxFrequencyHz = 27_000_000 // CB band, not in table
	r := Validate(cp)
	if !r.Passed() {
		t.Fatalf("out-of-band frequency should only warn, got: %v", r.Issues)
	}
	found := false
	for _, iss := range r.Issues {
		if iss.Severity == SeverityWarning && iss.Category == "Channel" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a Channel warning for out-of-band frequency")
	}
}

func TestValidate_WarnsExcessiveTOT(t *testing.T) {
	cp := goodCodeplug()
	cp.Zones[0].Channels[1].TOTSeconds = 900
	r := Validate(cp)
	if !r.Passed() {
		t.Fatalf("excessive TOT should only warn, got: %v", r.Issues)
	}
}

func TestValidate_RejectsUnresolvableContactReference(t *testing.T) {
	cp := goodCodeplug()
	cp.Zones[0].Channels[1].ContactID = 999
	r := Validate(cp)
	if r.Passed() {
		t.Fatal("expected unresolvable contact_id to fail validation")
	}
}

func TestValidate_WarnsDuplicateChannelNames(t *testing.T) {
	cp := goodCodeplug()
	cp.Zones[0].Channels[1].Name = cp.Zones[0].Channels[0].Name
	r := Validate(cp)
	if !r.Passed() {
		t.Fatalf("duplicate names should only warn, got: %v", r.Issues)
	}
	found := false
	for _, iss := range r.Issues {
		if iss.Category == "Channel" && iss.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a duplicate-name warning")
	}
}

// TestValidate_Monotonic checks that adding a defect (an empty zone name)
// to a passing codeplug never reduces the issue count.
func TestValidate_Monotonic(t *testing.T) {
	cp := goodCodeplug()
	before := Validate(cp)

	cp.Zones[0].Name = ""
	after := Validate(cp)

	if len(after.Issues) < len(before.Issues) {
		t.Fatalf("adding a defect reduced issue count: before=%d after=%d", len(before.Issues), len(after.Issues))
	}
}
