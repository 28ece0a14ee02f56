package enums

import "testing"

func TestParseCartStatus(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"idle", "creating_checkout", "handoff_pending"} {
		status, err := ParseCartStatus(value)
		if err != nil {
			t.Fatalf("ParseCartStatus(%q): %v", value, err)
		}
		if !status.IsValid() {
			t.Fatalf("%q parsed but reports invalid", value)
		}
	}

	// Failures park the cart at idle with last_error; there is no
	// dedicated failure status.
	for _, value := range []string{"error", "checked_out", ""} {
		if _, err := ParseCartStatus(value); err == nil {
			t.Fatalf("ParseCartStatus(%q) accepted an unknown status", value)
		}
	}
}
