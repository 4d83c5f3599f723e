package version

import (
	"reflect"
	"testing"
)

func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = v, c, d })
	Version, Commit, BuildDate = version, commit, date
}

func TestInfoShortensCommit(t *testing.T) {
	for commit, want := range map[string]string{
		"unknown":       "0.9.1",
		"1234567":       "0.9.1",
		"abc1234567890": "0.9.1 (abc1234)",
	} {
		withBuild(t, "0.9.1", commit, "unknown")
		if got := Info(); got != want {
			t.Errorf("Info() with commit %q = %q, want %q", commit, got, want)
		}
	}
}

func TestFull(t *testing.T) {
	withBuild(t, "1.2.3", "abcdef123456", "2026-01-15")

	want := "archscan version 1.2.3\nCommit: abcdef123456\nBuilt: 2026-01-15"
	if got := Full(); got != want {
		t.Errorf("Full() = %q, want %q", got, want)
	}
}

func TestMap(t *testing.T) {
	withBuild(t, "1.2.3", "deadbeef", "2026-01-15")

	want := map[string]string{"version": "1.2.3", "commit": "deadbeef", "buildDate": "2026-01-15"}
	if got := Map(); !reflect.DeepEqual(got, want) {
		t.Errorf("Map() = %v, want %v", got, want)
	}
}
