package dmd

import (
	"testing"

	"github.com/dlang/dub-sub005/pkg/iface"
	"github.com/dlang/dub-sub005/pkg/recipe"
)

func TestParseProbeOutputExtractsOSAndArch(t *testing.T) {
	output := "dubprobe.d(1): Deprecation: nothing\n" +
		probeBegin + "os=linux;arch=x86_64" + probeEnd + "\n"

	plat, err := parseProbeOutput(output)
	if err != nil {
		t.Fatalf("parseProbeOutput: %s", err)
	}
	if plat.OS != "linux" || plat.Architecture != "x86_64" {
		t.Fatalf("unexpected platform: %+v", plat)
	}
}

func TestParseProbeOutputMissingMarkersErrors(t *testing.T) {
	if _, err := parseProbeOutput("dmd: error: no such file"); err == nil {
		t.Fatalf("expected an error when probe markers are absent")
	}
}

func TestVersionExtractsSemverToken(t *testing.T) {
	c := New("dmd")
	v, err := c.Version("dmd", "DMD64 D Compiler v2.100.2\nCopyright...\n")
	if err != nil {
		t.Fatalf("Version: %s", err)
	}
	if v != "2.100.2" {
		t.Fatalf("expected 2.100.2, got %s", v)
	}
}

func TestVersionWithNoTokenErrors(t *testing.T) {
	c := New("dmd")
	if _, err := c.Version("dmd", "garbage output"); err == nil {
		t.Fatalf("expected an error when no version token is present")
	}
}

func TestLFlagsToDFlagsPassesThroughLinkerPrefix(t *testing.T) {
	c := New("dmd")
	got := c.LFlagsToDFlags([]string{"-lpthread", "-lm"})
	want := []string{"-L-lpthread", "-L-lm"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestExtractBuildOptionsRecognizesNamedFlags(t *testing.T) {
	c := New("dmd")
	settings := &recipe.BuildSettings{DFlags: []string{"-debug", "-unittest", "-wat"}}
	opts, err := c.ExtractBuildOptions(settings)
	if err != nil {
		t.Fatalf("ExtractBuildOptions: %s", err)
	}
	if len(opts) != 2 || opts[0] != OptDebug || opts[1] != OptUnittest {
		t.Fatalf("unexpected options: %v", opts)
	}
}

func TestPrepareBuildSettingsLowersImportAndVersionFlags(t *testing.T) {
	c := New("dmd")
	settings := &recipe.BuildSettings{
		ImportPaths: []string{"src"},
		Versions:    []string{"Have_vibe_d"},
		DFlags:      []string{"-release"},
	}
	if err := c.PrepareBuildSettings(settings, iface.CompilerPlatform{}, 0); err != nil {
		t.Fatalf("PrepareBuildSettings: %s", err)
	}
	want := []string{"-Isrc", "-version=Have_vibe_d", "-release"}
	if len(settings.DFlags) != len(want) {
		t.Fatalf("got %v, want %v", settings.DFlags, want)
	}
	for i := range want {
		if settings.DFlags[i] != want[i] {
			t.Fatalf("got %v, want %v", settings.DFlags, want)
		}
	}
}

func TestSetTargetAppendsOfFlag(t *testing.T) {
	c := New("dmd")
	settings := &recipe.BuildSettings{}
	if err := c.SetTarget(settings, iface.CompilerPlatform{}, "/out/bin/app"); err != nil {
		t.Fatalf("SetTarget: %s", err)
	}
	if len(settings.DFlags) != 1 || settings.DFlags[0] != "-of/out/bin/app" {
		t.Fatalf("unexpected DFlags: %v", settings.DFlags)
	}
}
