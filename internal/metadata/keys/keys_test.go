package keys

import (
	"testing"
)

func TestZoneKeyRoundTrip(t *testing.T) {
	key := ZoneKey("zone-east")
	if key != "/strato/v1/zones/zone-east" {
		t.Errorf("ZoneKey = %q", key)
	}

	id, ok := ZoneIDFromKey(key)
	if !ok || id != "zone-east" {
		t.Errorf("ZoneIDFromKey = %q, %v", id, ok)
	}
}

func TestZoneIDFromKeyRejectsForeignKeys(t *testing.T) {
	for _, key := range []string{
		"/strato/v1/instances/by-token/abc",
		"/strato/v1/zones/",
		"/strato/v1/zones/a/b",
		"zones/east",
	} {
		if _, ok := ZoneIDFromKey(key); ok {
			t.Errorf("ZoneIDFromKey(%q) accepted", key)
		}
	}
}

func TestHandleFormatting(t *testing.T) {
	cases := []int64{0, 1, 42, 9223372036854775807}
	for _, handle := range cases {
		s := FormatHandle(handle)
		if len(s) != HandleWidth {
			t.Errorf("FormatHandle(%d) width = %d", handle, len(s))
		}
		back, err := ParseHandle(s)
		if err != nil {
			t.Errorf("ParseHandle(%q): %v", s, err)
		}
		if back != handle {
			t.Errorf("round trip %d -> %q -> %d", handle, s, back)
		}
	}

	// Key order must match numeric order.
	if InstanceHandleKey(9) >= InstanceHandleKey(10) {
		t.Error("key order does not match numeric handle order")
	}
}

func TestParseHandleRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "42", "abcdefghijabcdefghij"} {
		if _, err := ParseHandle(s); err == nil {
			t.Errorf("ParseHandle(%q) accepted", s)
		}
	}
}

func TestValidateComponent(t *testing.T) {
	if err := ValidateComponent("zone-east"); err != nil {
		t.Errorf("valid component rejected: %v", err)
	}
	for _, s := range []string{"", "a/b", "a b"} {
		if err := ValidateComponent(s); err == nil {
			t.Errorf("ValidateComponent(%q) accepted", s)
		}
	}
}
