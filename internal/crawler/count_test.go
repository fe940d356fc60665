package crawler

import "testing"

func TestParseCompactCount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"1234567", 1234567},
		{"0", 0},
		{"3.5万", 35000},
		{"12万", 120000},
		{"3.5w", 35000},
		{"2W", 20000},
		{" 42 ", 42},
		{"1,234", 1234},
		{"0.1万", 1000},
	}
	for _, tc := range cases {
		got, err := ParseCompactCount(tc.in)
		if err != nil {
			t.Fatalf("ParseCompactCount(%q) err=%v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCompactCount(%q)=%d want=%d", tc.in, got, tc.want)
		}
	}
}

func TestParseCompactCountRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "万", "1.2.3"} {
		if _, err := ParseCompactCount(in); err == nil {
			t.Fatalf("ParseCompactCount(%q) want error", in)
		}
	}
}
