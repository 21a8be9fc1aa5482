package fonts

import (
	"bytes"
	"testing"
)

func TestLoadBuiltinPrefixes(t *testing.T) {
	plain, err := Load("bold")
	if err != nil {
		t.Fatalf("Load(bold): %v", err)
	}
	for _, name := range []string{"builtin:bold", "embed:bold", "built-in:BOLD"} {
		data, err := Load(name)
		if err != nil {
			t.Fatalf("Load(%q): %v", name, err)
		}
		if !bytes.Equal(data, plain) {
			t.Fatalf("Load(%q) returned a different font", name)
		}
	}
}

func TestLoadDefaultsToRegular(t *testing.T) {
	data, err := Load("builtin:")
	if err != nil || len(data) == 0 {
		t.Fatalf("empty name should load regular: %v", err)
	}
}

func TestLoadUnknown(t *testing.T) {
	if _, err := Load("comic"); err == nil {
		t.Fatalf("expected error for unknown font")
	}
}
