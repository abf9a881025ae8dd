package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/statesync/internal/errors"
)

func TestReportErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, fmt.Errorf("read state: %w", os.ErrNotExist), true)

	out := buf.String()
	if !strings.Contains(out, `"code":"S201"`) {
		t.Errorf("missing generic code: %s", out)
	}
	if !strings.Contains(out, "file does not exist") {
		t.Errorf("missing cause: %s", out)
	}
}

func TestReportErrorText(t *testing.T) {
	errors.SetColor(false)
	defer errors.SetColor(true)

	var buf bytes.Buffer
	reportError(&buf, errors.New("S101").WithDetail("bad port"), false)

	out := buf.String()
	if !strings.Contains(out, "ERROR S101:") {
		t.Errorf("coded error lost its code: %s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("colour codes in plain output: %q", out)
	}
}

func TestColorSupported(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	noColor := func(k string) (string, bool) { return "", k == "NO_COLOR" }
	unset := func(string) (string, bool) { return "", false }

	if colorSupported(f, noColor) {
		t.Error("NO_COLOR should disable colour")
	}
	if colorSupported(f, unset) {
		t.Error("a regular file is not a terminal")
	}
}
