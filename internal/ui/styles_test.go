package ui

import (
	"strings"
	"testing"
)

func TestRender_NoColor(t *testing.T) {
	saved := noColor
	defer func() { noColor = saved }()

	noColor = false
	if got := RenderOK("ok"); !strings.Contains(got, "\x1b[38;5;114m") {
		t.Errorf("RenderOK = %q, want green escape", got)
	}
	ForceNoColor()
	if got := RenderFail("x"); got != "x" {
		t.Errorf("RenderFail with no color = %q", got)
	}
	if Status(true) != "ok" || Status(false) != "failed" {
		t.Errorf("Status = %q/%q", Status(true), Status(false))
	}
}

func TestReadLine(t *testing.T) {
	got, err := readLine(strings.NewReader("  secret-key \nignored\n"))
	if err != nil {
		t.Fatalf("readLine: %v", err)
	}
	if got != "secret-key" {
		t.Errorf("readLine = %q", got)
	}
	got, err = readLine(strings.NewReader("no-newline"))
	if err != nil || got != "no-newline" {
		t.Errorf("readLine = %q, %v", got, err)
	}
}
