package digitizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSysfsEnableDisable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enabled")
	if err := os.WriteFile(path, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSysfs(path)

	if err := s.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "1\n" {
		t.Errorf("after Enable: got %q, want %q", got, "1\n")
	}

	if err := s.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	got, _ = os.ReadFile(path)
	if string(got) != "0\n" {
		t.Errorf("after Disable: got %q, want %q", got, "0\n")
	}
}

func TestSysfsCustomValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "power")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	s := &Sysfs{Path: path, On: "on", Off: "off"}
	if err := s.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "off\n" {
		t.Errorf("got %q, want %q", got, "off\n")
	}
}

func TestSysfsMissingAttribute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing")
	s := NewSysfs(path)

	if err := s.Enable(); err == nil {
		t.Fatal("expected error for missing attribute")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Enable must not create the attribute file")
	}
}

func TestFakeRecordsCalls(t *testing.T) {
	f := NewFake(true)
	if !f.IsEnabled() {
		t.Fatal("expected initially enabled")
	}

	f.Disable()
	f.Disable()
	f.Enable()

	en, dis := f.Calls()
	if en != 1 || dis != 2 {
		t.Errorf("calls: got (%d, %d), want (1, 2)", en, dis)
	}
	if !f.IsEnabled() {
		t.Error("expected enabled after last Enable")
	}
}

func TestFakeErrors(t *testing.T) {
	f := NewFake(false)
	f.EnableError = errors.New("i2c timeout")

	if err := f.Enable(); err == nil || err.Error() != "i2c timeout" {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.IsEnabled() {
		t.Error("state should change even when an error is returned")
	}
}

func TestNone(t *testing.T) {
	s := None{}
	if err := s.Enable(); err != nil {
		t.Error(err)
	}
	if err := s.Disable(); err != nil {
		t.Error(err)
	}
}
