package identity

import (
	"testing"
)

func TestParseRefClassification(t *testing.T) {
	cases := []struct {
		raw  string
		kind Kind
	}{
		{"42", KindLocal},
		{"0", KindLocal},
		{"-7", KindLocal},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", KindGlobal},
		{"6BA7B810-9DAD-11D1-80B4-00C04FD430C8", KindGlobal},
		{"web-frontend", KindName},
		{"", KindName},
		{"42abc", KindName},
	}

	for _, tc := range cases {
		ref := ParseRef(tc.raw)
		if ref.Kind() != tc.kind {
			t.Errorf("ParseRef(%q).Kind() = %v, want %v", tc.raw, ref.Kind(), tc.kind)
		}
		if ref.String() != tc.raw {
			t.Errorf("ParseRef(%q).String() = %q", tc.raw, ref.String())
		}
	}
}

func TestLocalRef(t *testing.T) {
	ref := LocalRef(99)
	handle, ok := ref.Handle()
	if !ok || handle != 99 {
		t.Errorf("Handle() = %d, %v", handle, ok)
	}
	if ref.IsGlobal() {
		t.Error("local ref reported as global")
	}
	if _, ok := ref.Token(); ok {
		t.Error("local ref yielded a token")
	}
}

func TestGlobalRef(t *testing.T) {
	token := NewGlobalToken()
	ref, ok := GlobalRef(token)
	if !ok {
		t.Fatalf("GlobalRef(%q) rejected", token)
	}
	if !ref.IsGlobal() {
		t.Error("IsGlobal() = false")
	}
	got, ok := ref.Token()
	if !ok || got != token {
		t.Errorf("Token() = %q, %v", got, ok)
	}
	if _, ok := ref.Handle(); ok {
		t.Error("global ref yielded a handle")
	}

	if _, ok := GlobalRef("not-a-token"); ok {
		t.Error("GlobalRef accepted a non-UUID string")
	}
}

func TestIsGlobalToken(t *testing.T) {
	if !IsGlobalToken(NewGlobalToken()) {
		t.Error("fresh token not recognized")
	}
	if IsGlobalToken("12345") {
		t.Error("numeric string recognized as token")
	}
}
