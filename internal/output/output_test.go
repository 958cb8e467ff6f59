//go:build !windows

package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterClasses(t *testing.T) {
	var terminal, diagnosis bytes.Buffer
	printer := NewPrinterTo(&terminal, &diagnosis, []Class{Required, Error, Normal}, false)

	printer.Out(Normal, "scanned %d\n", 3)
	printer.Out(Verbose, "hashing %s\n", "a")
	printer.Out(Error, "%scannot read%s\n", Red, Reset)

	if terminal.String() != "scanned 3\n" {
		t.Errorf("unexpected terminal output %q", terminal.String())
	}
	if diagnosis.String() != "cannot read\n" {
		t.Errorf("escapes must be dropped in plain mode, got %q", diagnosis.String())
	}
}

func TestPrinterKeepsEscapes(t *testing.T) {
	var terminal bytes.Buffer
	printer := NewPrinterTo(&terminal, &terminal, []Class{Normal}, true)
	printer.Out(Normal, "%sINFECTED%s", Red, Reset)
	if terminal.String() != "\x1B[31mINFECTED\x1B[0m" {
		t.Errorf("unexpected output %q", terminal.String())
	}
}

func TestText(t *testing.T) {
	if got := Indent(2, "a\nb"); got != "  a\n  b" {
		t.Errorf("Indent() = %q", got)
	}
	if got := Count(1, "file", "files"); got != "1 file" {
		t.Errorf("Count() = %q", got)
	}
	if got := Count(0, "file", "files"); got != "0 files" {
		t.Errorf("Count() = %q", got)
	}
}

func TestCommonDir(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{name: "Single", paths: []string{"/home/u/a.exe"}, want: "/home/u"},
		{name: "Siblings", paths: []string{"/home/u/a", "/home/u/b"}, want: "/home/u"},
		{name: "Nested", paths: []string{"/home/u/a", "/home/u/x/y/b"}, want: "/home/u"},
		{name: "PrefixIsNoParent", paths: []string{"/home/user/a", "/home/u/b"}, want: "/home"},
		{name: "Disjoint", paths: []string{"/tmp/a", "/home/b"}, want: "/"},
		{name: "None", paths: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommonDir(tt.paths); got != tt.want {
				t.Errorf("CommonDir() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisualFileTree(t *testing.T) {
	tree := NewVisualFileTree("/home/u")
	tree.InsertPath("a.exe", "a.exe")
	tree.InsertPath("x/y/b.exe", "b.exe")
	tree.InsertPath("x/c.exe", "c.exe")
	rendered := tree.Render()
	for _, expected := range []string{"/home/u", "a.exe", "x/", "y/", "b.exe", "c.exe"} {
		if !strings.Contains(rendered, expected) {
			t.Errorf("rendered tree lacks %q:\n%s", expected, rendered)
		}
	}
	if strings.Count(rendered, "x/") != 1 {
		t.Errorf("directory must appear once:\n%s", rendered)
	}
}
