package utils

import "testing"

func TestConvertToJobDef(t *testing.T) {
	valid := []string{"30m", "1h", "90s", "04:00", "23:59", "0 */6 * * *"}
	for _, interval := range valid {
		if _, err := ConvertToJobDef(interval); err != nil {
			t.Errorf("ConvertToJobDef(%q): %v", interval, err)
		}
	}
	invalid := []string{"", "soon", "25:00", "* * *"}
	for _, interval := range invalid {
		if _, err := ConvertToJobDef(interval); err == nil {
			t.Errorf("ConvertToJobDef(%q) accepted an invalid interval", interval)
		}
	}
}

func TestRemoveItem(t *testing.T) {
	got := RemoveItem([]string{"a", "b", "c", "b"}, "b")
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("RemoveItem = %v", got)
	}
}

func TestMask(t *testing.T) {
	if masked := Mask("supersecretapikey"); masked == "supersecretapikey" {
		t.Error("Mask returned the input unchanged")
	}
	if Mask("ab") == "" {
		t.Error("Mask of a short string is empty")
	}
}
