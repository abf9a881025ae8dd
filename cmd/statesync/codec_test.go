package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestEncodeCommand(t *testing.T) {
	out, err := execute(t, encodeCmd(&globalFlags{}), "",
		"-n", "thread", `{"diameter":12,"metric":true,"label":""}`)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if out != "thread_diameter=12&thread_metric=true" {
		t.Errorf("encode = %q", out)
	}
}

func TestEncodeCommandStdin(t *testing.T) {
	out, err := execute(t, encodeCmd(&globalFlags{}), `{"grade":"H7"}`, "-n", "fit", "-")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if out != "fit_grade=H7" {
		t.Errorf("encode = %q", out)
	}
}

func TestEncodeCommandRequiresNamespace(t *testing.T) {
	if _, err := execute(t, encodeCmd(&globalFlags{}), "", `{"a":1}`); err == nil {
		t.Error("encode without a namespace should fail")
	}
}

func TestEncodeCommandRejectsNonObject(t *testing.T) {
	if _, err := execute(t, encodeCmd(&globalFlags{}), "", "-n", "x", `[1,2]`); err == nil {
		t.Error("encode of an array should fail")
	}
}

func TestDecodeCommand(t *testing.T) {
	tmpl := `{"diameter":0,"metric":false}`

	out, err := execute(t, decodeCmd(&globalFlags{}), "",
		"-n", "thread", "-t", tmpl, "thread_diameter=12&thread_admin=1&other_diameter=3")
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out != `{"diameter":12}` {
		t.Errorf("decode = %s", out)
	}

	out, err = execute(t, decodeCmd(&globalFlags{}), "",
		"-n", "thread", "-t", tmpl, "--merge", "https://example.com/calc?thread_diameter=12")
	if err != nil {
		t.Fatalf("decode --merge failed: %v", err)
	}
	if out != `{"diameter":12,"metric":false}` {
		t.Errorf("decode --merge = %s", out)
	}
}

func TestDecodeCommandRequiresTemplate(t *testing.T) {
	if _, err := execute(t, decodeCmd(&globalFlags{}), "", "-n", "thread", "thread_diameter=1"); err == nil {
		t.Error("decode without a template should fail")
	}
}

func TestShareCommand(t *testing.T) {
	out, err := execute(t, shareCmd(&globalFlags{}), "",
		"-n", "thread", "--base", "https://tools.example.com/calc/thread?old=1#top",
		"-t", `{"diameter":0,"metric":false}`,
		`{"diameter":12,"extra":true}`)
	if err != nil {
		t.Fatalf("share failed: %v", err)
	}
	want := "https://tools.example.com/calc/thread?thread_diameter=12&thread_metric=false"
	if out != want {
		t.Errorf("share = %q, want %q", out, want)
	}
}

func TestShareCommandRequiresAbsoluteBase(t *testing.T) {
	if _, err := execute(t, shareCmd(&globalFlags{}), "", "-n", "thread", "--base", "/calc", `{}`); err == nil {
		t.Error("share with a relative base should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, versionCmd(), "", "--short")
	if err != nil || out != version {
		t.Errorf("version --short = %q, %v", out, err)
	}

	out, err = execute(t, versionCmd(), "", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	if !strings.Contains(out, `"version": "dev"`) || !strings.Contains(out, `"s3"`) {
		t.Errorf("version --json = %s", out)
	}
}
