package version

import (
	"runtime/debug"
	"testing"
)

func withBuildInfo(t *testing.T, bi *debug.BuildInfo) {
	t.Helper()
	oldVersion, oldCommit, oldBuildTime, oldRead := AppVersion, GitCommit, BuildTime, readBuildInfo
	t.Cleanup(func() {
		AppVersion, GitCommit, BuildTime, readBuildInfo = oldVersion, oldCommit, oldBuildTime, oldRead
	})
	readBuildInfo = func() (*debug.BuildInfo, bool) { return bi, bi != nil }
}

func TestCurrent_Defaults(t *testing.T) {
	withBuildInfo(t, nil)
	AppVersion = ""
	GitCommit = ""
	BuildTime = ""

	info := Current("")

	if info.Service != Unknown {
		t.Fatalf("expected service %q, got %q", Unknown, info.Service)
	}
	if info.Version != DevelopmentVersion {
		t.Fatalf("expected version %q, got %q", DevelopmentVersion, info.Version)
	}
	if info.Commit != Unknown {
		t.Fatalf("expected commit %q, got %q", Unknown, info.Commit)
	}
	if info.BuildTime != Unknown {
		t.Fatalf("expected build_time %q, got %q", Unknown, info.BuildTime)
	}
}

func TestCurrent_BuildInfo(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		GoVersion: "go1.25.5",
		Main:      debug.Module{Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})
	AppVersion = DevelopmentVersion
	GitCommit = Unknown
	BuildTime = Unknown

	info := Current("keyset")
	if info.Version != "v0.3.0" || info.Commit != "abc123" || info.BuildTime != "2026-01-02T03:04:05Z" || info.GoVersion != "go1.25.5" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestCurrent_LdflagsWin(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})
	AppVersion = "v1.2.3"
	GitCommit = "feedbeef"
	BuildTime = Unknown

	info := Current("keyset")
	if info.Version != "v1.2.3" || info.Commit != "feedbeef" {
		t.Fatalf("unexpected info %+v", info)
	}
	if got, want := info.String(), "keyset@v1.2.3 (commit=feedbeef, build_time=unknown)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
