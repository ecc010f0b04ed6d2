package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ligustah/fetchq/internal/testutils"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestGet(t *testing.T) {
	data := testutils.GenerateTestData(t, 1000000)
	srv := testutils.StartRangeServer(t, testutils.TestFile{Name: "file.bin", Data: data, ETag: "abc"})
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, "--log-level", "warn", "get", "--dir", dir, "--chunk-size", "256KiB", srv.FileURL("file.bin"))
	if code != ExitSuccess {
		t.Fatalf("get failed with exit code %d: %s", code, stderr)
	}
	testutils.CompareFileToData(t, filepath.Join(dir, "file.bin"), data)
	if !strings.Contains(stdout, "completed") {
		t.Errorf("expected completed in output, got %q", stdout)
	}

	// Second run is served from the existing file.
	gets := srv.Gets()
	code, _, stderr = runCLI(t, "get", "--dir", dir, srv.FileURL("file.bin"))
	if code != ExitSuccess {
		t.Fatalf("second get failed with exit code %d: %s", code, stderr)
	}
	if srv.Gets() != gets {
		t.Errorf("expected no range requests on second run, got %d", srv.Gets()-gets)
	}

	code, stdout, stderr = runCLI(t, "status", filepath.Join(dir, "file.bin"))
	if code != ExitSuccess {
		t.Fatalf("status failed with exit code %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "etag:     abc") || !strings.Contains(stdout, "(100%)") {
		t.Errorf("unexpected status output:\n%s", stdout)
	}
}

func TestGetFromConfigFile(t *testing.T) {
	data := testutils.GenerateTestData(t, 4096)
	srv := testutils.StartRangeServer(t,
		testutils.TestFile{Name: "a.bin", Data: data, ETag: "a"},
		testutils.TestFile{Name: "b.bin", Data: data, ETag: "b"},
	)
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "fetchq.yaml")
	cfg := "download_dir: " + dir + "\n" +
		"max_parallel: 1\n" +
		"tick_interval: 10ms\n" +
		"tasks:\n" +
		"  - url: " + srv.FileURL("a.bin") + "\n" +
		"  - url: " + srv.FileURL("b.bin") + "\n" +
		"    file_name: renamed.bin\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, _, stderr := runCLI(t, "--config", cfgPath, "get")
	if code != ExitSuccess {
		t.Fatalf("get failed with exit code %d: %s", code, stderr)
	}
	testutils.CompareFileToData(t, filepath.Join(dir, "a.bin"), data)
	testutils.CompareFileToData(t, filepath.Join(dir, "renamed.bin"), data)
}

func TestGetNotFound(t *testing.T) {
	srv := testutils.StartRangeServer(t)

	code, stdout, _ := runCLI(t, "get", "--dir", t.TempDir(), srv.FileURL("missing.bin"))
	if code != ExitSourceNotAccess {
		t.Errorf("expected exit code %d, got %d", ExitSourceNotAccess, code)
	}
	if !strings.Contains(stdout, "error") {
		t.Errorf("expected error in output, got %q", stdout)
	}
}

func TestGetInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"get", "--dir", t.TempDir(), "http://127.0.0.1:1/file.bin"}, &stdout, &stderr)
	if code != ExitInterrupted {
		t.Errorf("expected exit code %d, got %d", ExitInterrupted, code)
	}
}

func TestInfo(t *testing.T) {
	srv := testutils.StartRangeServer(t, testutils.TestFile{Name: "file.bin", Data: make([]byte, 2048), ETag: "abc"})

	code, stdout, stderr := runCLI(t, "info", srv.FileURL("file.bin"))
	if code != ExitSuccess {
		t.Fatalf("info failed with exit code %d: %s", code, stderr)
	}
	for _, want := range []string{"Status:         200", "2.0 KiB (2048 bytes)", "ETag:           abc", "Accepts ranges: true", "File name:      file.bin"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected %q in output:\n%s", want, stdout)
		}
	}
	if srv.Gets() != 0 {
		t.Errorf("info must not download, got %d GET requests", srv.Gets())
	}

	code, _, _ = runCLI(t, "info", srv.FileURL("missing.bin"))
	if code != ExitSourceNotAccess {
		t.Errorf("expected exit code %d for missing file, got %d", ExitSourceNotAccess, code)
	}
}

func TestInvalidArgs(t *testing.T) {
	tests := [][]string{
		{},
		{"frobnicate"},
		{"get"},
		{"get", "--chunk-size", "lots", "https://example.com/x"},
		{"--log-format", "xml", "info", "https://example.com/x"},
		{"info"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			code, _, _ := runCLI(t, args...)
			if code != ExitInvalidArgs {
				t.Errorf("expected exit code %d, got %d", ExitInvalidArgs, code)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, "--help")
	if code != ExitSuccess {
		t.Errorf("expected exit code %d, got %d", ExitSuccess, code)
	}
	if !strings.Contains(stdout, "get") || !strings.Contains(stdout, "status") {
		t.Errorf("help does not list subcommands:\n%s", stdout)
	}
}

func TestStatusMissing(t *testing.T) {
	code, _, stderr := runCLI(t, "status", filepath.Join(t.TempDir(), "nothing.bin"))
	if code == ExitSuccess {
		t.Errorf("expected failure, got success")
	}
	if !strings.Contains(stderr, "no record") {
		t.Errorf("expected 'no record' in stderr, got %q", stderr)
	}
}
