package vfs

import (
	"testing"
	"time"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"file.txt", true},
		{".bashrc", true},
		{"..hidden", true},
		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
		{`a\b`, false},
		{"../etc", false},
	}
	for _, tt := range tests {
		if got := ValidName(tt.name); got != tt.want {
			t.Errorf("ValidName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewEntryDirectorySize(t *testing.T) {
	e := NewEntry("d", true, 4096, time.Now())
	if e.Size != 0 {
		t.Errorf("directory size should be 0, got %d", e.Size)
	}
	if e.Regular() {
		t.Error("directory reported as regular")
	}
	if !NewEntry("f", false, 1, time.Now()).Regular() {
		t.Error("file not reported as regular")
	}
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		NewEntry("b.txt", false, 1, time.Time{}),
		NewEntry("Zeta", true, 0, time.Time{}),
		NewEntry("a.txt", false, 1, time.Time{}),
		NewEntry("B.txt", false, 1, time.Time{}),
		NewEntry("alpha", true, 0, time.Time{}),
	}
	SortEntries(entries)

	want := []string{"alpha", "Zeta", "a.txt", "B.txt", "b.txt"}
	for i, name := range want {
		if entries[i].Name != name {
			t.Fatalf("position %d: got %q, want %q (all: %v)", i, entries[i].Name, name, entries)
		}
	}
}

func TestWithin(t *testing.T) {
	t.Run("slash", func(t *testing.T) {
		var p SlashPaths
		cases := []struct {
			base, path string
			want       bool
		}{
			{"/srv", "/srv", true},
			{"/srv", "/srv/logs/a", true},
			{"/srv", "/srv/../etc", false},
			{"/srv", "/srvx", false},
			{"/", "/anything", true},
		}
		for _, c := range cases {
			if got := p.Within(c.base, c.path); got != c.want {
				t.Errorf("Within(%q, %q) = %v, want %v", c.base, c.path, got, c.want)
			}
		}
	})

	t.Run("native", func(t *testing.T) {
		var p NativePaths
		base := t.TempDir()
		if !p.Within(base, p.Join(base, "a", "b")) {
			t.Error("child not within base")
		}
		if p.Within(base, p.Join(base, "..", "x")) {
			t.Error("sibling reported within base")
		}
	})
}

func TestIsRoot(t *testing.T) {
	if !IsRoot(SlashPaths{}, "/") {
		t.Error("/ should be root")
	}
	if IsRoot(SlashPaths{}, "/home") {
		t.Error("/home should not be root")
	}
}
