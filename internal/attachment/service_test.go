package attachment

import "testing"

func TestObjectKey(t *testing.T) {
	got := objectKey("cmp_1", "note_2", "map of the keep.png")
	want := "campaigns/cmp_1/notes/note_2/map_of_the_keep.png"
	if got != want {
		t.Fatalf("objectKey = %q, want %q", got, want)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"handout.pdf":            "handout.pdf",
		"../../etc/passwd":       "passwd",
		`C:\maps\dungeon.jpg`:    "dungeon.jpg",
		"..":                     "file",
		"":                       "file",
		"sketch (final)!.png":    "sketch__final__.png",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
