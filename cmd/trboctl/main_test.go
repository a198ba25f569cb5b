package main

import "testing"

func TestRun_NoArgsReturnsUsageError(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Errorf("expected exit code 2 for no args, got %d", code)
	}
}

func TestRun_VersionSucceeds(t *testing.T) {
	if code := run([]string{"version"}); code != 0 {
		t.Errorf("expected exit code 0 for version, got %d", code)
	}
}

func TestRun_UnknownSubcommandReturnsUsageError(t *testing.T) {
	if code := run([]string{"bogus"}); code != 2 {
		t.Errorf("expected exit code 2 for unknown subcommand, got %d", code)
	}
}
