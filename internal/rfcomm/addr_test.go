package rfcomm

import "testing"

func TestParseAddr(t *testing.T) {
	got, err := ParseAddr("00:11:22:AA:BB:CC")
	if err != nil {
		t.Fatal(err)
	}
	want := [6]uint8{0xCC, 0xBB, 0xAA, 0x22, 0x11, 0x00}
	if got != want {
		t.Fatalf("ParseAddr = % x, want % x", got, want)
	}

	for _, bad := range []string{"", "00:11:22:AA:BB", "00:11:22:AA:BB:GG", "0:11:22:AA:BB:CC0", "00-11-22-AA-BB-CC"} {
		if _, err := ParseAddr(bad); err == nil {
			t.Errorf("ParseAddr(%q) should fail", bad)
		}
	}
}
