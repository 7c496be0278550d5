package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	fPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(fPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return fPath
}

func TestNewFillsDefaultPorts(t *testing.T) {
	t.Parallel()

	c, err := New(writeConfig(t,
		`{"tcp":{"enabled":true,"address":"localhost"},"ws":{"enabled":true,"address":"0.0.0.0"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if c.TCP.Address != "localhost:1883" {
		t.Fatal(c.TCP.Address)
	}
	if c.WS.Address != "0.0.0.0:80" {
		t.Fatal(c.WS.Address)
	}
}

func TestNewRejectsNoListeners(t *testing.T) {
	t.Parallel()

	if _, err := New(writeConfig(t, `{}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewRejectsTLSWithoutKeyPair(t *testing.T) {
	t.Parallel()

	if _, err := New(writeConfig(t, `{"tls":{"enabled":true,"address":":8883"}}`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewRejectsStoreWithoutDir(t *testing.T) {
	t.Parallel()

	cfg := `{"tcp":{"enabled":true,"address":":1883"},"store":{"enabled":true}}`
	if _, err := New(writeConfig(t, cfg)); err == nil {
		t.Fatal("expected error")
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	c := Default()
	if !c.TCP.Enabled || c.TCP.Address != ":1883" {
		t.Fatal(c.TCP)
	}
	if err := c.validate(); err != nil {
		t.Fatal(err)
	}
}
