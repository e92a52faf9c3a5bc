package utils

import (
	"bytes"
	"strings"
	"testing"
)

func newTestDiagnostics(level DiagnosticLevel) (*DiagnosticSystem, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	d := NewDiagnosticSystemWithWriters(level, &out, &errOut)
	d.SetColors(false)
	d.SetShowTime(false)
	return d, &out, &errOut
}

func TestDiagnosticSystem_Levels(t *testing.T) {
	d, out, errOut := newTestDiagnostics(DiagnosticInfo)

	d.Info("found %d packages", 2)
	d.Verbose("hidden")
	d.Debug("hidden")
	d.Warn("careful")
	d.Error("broken %s", "thing")

	if !strings.Contains(out.String(), "[INFO] found 2 packages") {
		t.Errorf("missing info line in %q", out.String())
	}
	if !strings.Contains(out.String(), "[WARN] careful") {
		t.Errorf("missing warn line in %q", out.String())
	}
	if strings.Contains(out.String(), "hidden") {
		t.Errorf("verbose output leaked at info level: %q", out.String())
	}
	if errOut.String() != "[ERROR] broken thing\n" {
		t.Errorf("unexpected error output %q", errOut.String())
	}
}

func TestDiagnosticSystem_Silent(t *testing.T) {
	d, out, errOut := newTestDiagnostics(DiagnosticSilent)
	d.Error("x")
	d.Header("x")
	d.Summary("x", []Stat{{"a", 1}})
	if out.Len() != 0 || errOut.Len() != 0 {
		t.Errorf("expected no output, got %q / %q", out.String(), errOut.String())
	}
}

func TestDiagnosticSystem_Phases(t *testing.T) {
	d, out, _ := newTestDiagnostics(DiagnosticInfo)

	d.Header("Generating proxies")
	d.PhaseHeader("Scanning")
	d.Indent()
	d.PhaseItem("%d types", 3)
	d.PhaseWriting("store/autogen_proxy.go")
	d.List("item")
	d.Unindent()
	d.Unindent()
	d.Summary("Summary", []Stat{{"Proxies", 3}, {"Files", 1}})
	d.GenerationComplete()

	want := []string{
		"proxyman: Generating proxies\n",
		"Scanning:\n",
		"  ✓ 3 types\n",
		"  ✏ Writing store/autogen_proxy.go\n",
		"  - item\n",
		"Summary\n   Proxies: 3\n   Files: 1\n",
		"proxyman: Generation complete!\n",
	}
	for _, w := range want {
		if !strings.Contains(out.String(), w) {
			t.Errorf("expected %q in output:\n%s", w, out.String())
		}
	}
}
