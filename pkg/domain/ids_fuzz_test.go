package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseRecordID checks that parsing never panics and that accepted keys
// round-trip unchanged.
func FuzzParseRecordID(f *testing.F) {
	f.Add("")
	f.Add("C1")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("'; DROP TABLE clients;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseRecordID(input)
		if err != nil {
			return
		}
		if !utf8.ValidString(id.String()) {
			t.Errorf("accepted invalid UTF-8 key %q", input)
		}
		again, err := ParseRecordID(id.String())
		if err != nil {
			t.Errorf("accepted key failed round-trip: %v", err)
		}
		if again != id {
			t.Errorf("round-trip changed key %q -> %q", id, again)
		}
	})
}
