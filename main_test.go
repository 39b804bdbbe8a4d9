package main

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llir/llvm/ir/constant"
	"github.com/pontaoski/kalei/eval"
)

// TestMain runs the kalei command instead of the tests when the test binary
// is re-executed by runKalei.
func TestMain(m *testing.M) {
	if os.Getenv("KALEI_RUN_MAIN") == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func runKalei(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()

	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = append(os.Environ(), "KALEI_RUN_MAIN=1")
	var out, errs bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errs

	err := cmd.Run()
	if exit, ok := err.(*exec.ExitError); ok {
		code = exit.ExitCode()
	} else if err != nil {
		t.Fatal(err)
	}
	return out.String(), errs.String(), code
}

func writeSource(t *testing.T, dir, src string) string {
	t.Helper()

	path := filepath.Join(dir, "prog.kl")
	if err := ioutil.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCompile(t *testing.T) {
	dir, err := ioutil.TempDir("", "kalei")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := writeSource(t, dir, `
def square(int x) { return x * x; }
def main() { return square(7); }
`)

	m, tree, diags, err := compile(path)
	if err != nil || len(diags) > 0 {
		t.Fatalf("compile: %v %v", err, diags)
	}
	if len(tree.Toplevels) != 2 {
		t.Errorf("got %d toplevels", len(tree.Toplevels))
	}
	if m.SourceFilename != "prog" {
		t.Errorf("module named %q, want prog", m.SourceFilename)
	}

	ret, err := eval.New(m).Call("main")
	if err != nil || ret != 49 {
		t.Errorf("main() = %v, %v", ret, err)
	}

	if err := writeManifest(dir, kaleiModule{Package: "squares"}); err != nil {
		t.Fatal(err)
	}
	m, _, _, err = compile(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.SourceFilename != "squares" {
		t.Errorf("module named %q, want the manifest's package", m.SourceFilename)
	}
}

func TestCompileKeepsGoingAfterErrors(t *testing.T) {
	dir, err := ioutil.TempDir("", "kalei")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := writeSource(t, dir, `
def bad(int x { return x; }
def unknown() { return y; }
def good() { return 1; }
`)

	m, _, diags, err := compile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) < 2 {
		t.Errorf("got %d diagnostics, want a parse and a lowering error", len(diags))
	}
	if ret, err := eval.New(m).Call("good"); err != nil || ret != 1 {
		t.Errorf("good() = %v, %v", ret, err)
	}

	if _, _, _, err := compile(filepath.Join(dir, "missing.kl")); err == nil {
		t.Errorf("compiling a missing file should fail")
	}
}

func TestTypeInfo(t *testing.T) {
	dir, err := ioutil.TempDir("", "kalei")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	path := writeSource(t, dir, `
extern sin(int x)
def add(int a, int b) { return a + b; }
`)
	m, _, diags, err := compile(path)
	if err != nil || len(diags) > 0 {
		t.Fatalf("compile: %v %v", err, diags)
	}

	info := typeInfoOf(m)
	if len(info.Functions) != 1 || info.Functions["add"] != 2 {
		t.Errorf("got %v", info.Functions)
	}

	registerTypeInfoWithModule(info, m)
	if len(m.Globals) != 1 || m.Globals[0].Name() != typeInfoSymbol {
		t.Fatalf("type info global missing")
	}

	arr, ok := m.Globals[0].Init.(*constant.CharArray)
	if !ok {
		t.Fatalf("type info is a %T", m.Globals[0].Init)
	}
	data := arr.X[:len(arr.X)-1]

	var back typeInfo
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Functions["add"] != 2 {
		t.Errorf("round trip gave %v", back.Functions)
	}
}

func TestDiagnosticsGoToStderr(t *testing.T) {
	dir, err := ioutil.TempDir("", "kalei")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	missing := filepath.Join(dir, "nope.kl")
	for _, cmd := range []string{"build", "run"} {
		args := []string{cmd, missing}
		if cmd == "build" {
			args = append(args, filepath.Join(dir, "out.ll"))
		}

		stdout, stderr, code := runKalei(t, args...)
		if code != 1 {
			t.Errorf("%s: exit status %d, want 1", cmd, code)
		}
		if !strings.Contains(stderr, "nope.kl") {
			t.Errorf("%s: stderr %q does not name the missing file", cmd, stderr)
		}
		if stdout != "" {
			t.Errorf("%s: unexpected stdout %q", cmd, stdout)
		}
	}

	path := writeSource(t, dir, "def main() { return y; }")
	stdout, stderr, code := runKalei(t, "build", "--trace", path, filepath.Join(dir, "out.ll"))
	if code != 1 || !strings.Contains(stderr, "y") || stdout != "" {
		t.Errorf("build --trace: status %d, stdout %q, stderr %q", code, stdout, stderr)
	}
}

func TestTypeInfoMissingLibrary(t *testing.T) {
	if _, err := getTypeInfoFromFile(filepath.Join(os.TempDir(), "kalei-no-such-lib.so")); err == nil {
		t.Errorf("reading type info from a missing library should fail")
	}
}
