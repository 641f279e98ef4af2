package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/quizqti/core/qti"
	"github.com/FocuswithJustin/quizqti/internal/convert"
	"github.com/FocuswithJustin/quizqti/internal/server"
)

const sample = `Quiz title: Arithmetic

1.  What is 2+3?
a)  6
*b) 5

Points: 2
2.  Root of 4?
=   2
`

// setup writes sample and a config file using the in-memory cache into a
// temporary directory.
func setup(t *testing.T, config string) (dir, quiz, cfg string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("SOURCE_DATE_EPOCH", "")
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	t.Setenv("QUIZQTI_JWT_SECRET", "")
	quiz = filepath.Join(dir, "quiz.md")
	if err := os.WriteFile(quiz, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}
	cfg = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfg, []byte("cache:\n  driver: memory\n"+config), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, quiz, cfg
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), append([]string{"--no-color"}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestConvert(t *testing.T) {
	dir, quiz, cfg := setup(t, "")

	code, out, errOut := runCLI(t, "--config", cfg, "convert", quiz)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "2 questions, 3 points") {
		t.Errorf("stdout = %q", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "quiz.zip"))
	if err != nil {
		t.Fatal(err)
	}
	sum, err := qti.ReadArchive(data)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Title != "Arithmetic" || sum.Questions() != 2 {
		t.Errorf("archive = %+v", sum)
	}

	out2 := filepath.Join(dir, "again.zip")
	if code, _, errOut := runCLI(t, "--config", cfg, "convert", quiz, "-o", out2); code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	again, err := os.ReadFile(out2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("conversion is not reproducible")
	}
}

func TestConvertSolutions(t *testing.T) {
	dir, quiz, cfg := setup(t, "")
	key := filepath.Join(dir, "key.md")

	code, _, errOut := runCLI(t, "--config", cfg, "convert", quiz, "--solutions", key, "--only-solutions")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	md, err := os.ReadFile(key)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(md), "Arithmetic") {
		t.Errorf("solutions = %q", md)
	}
	if _, err := os.Stat(filepath.Join(dir, "quiz.zip")); !os.IsNotExist(err) {
		t.Error("--only-solutions wrote an archive")
	}

	html := filepath.Join(dir, "key.html")
	if code, _, errOut := runCLI(t, "--config", cfg, "solutions", quiz, "-o", html); code != 0 {
		t.Fatalf("solutions exit %d: %s", code, errOut)
	}
	if _, err := os.Stat(html); err != nil {
		t.Error(err)
	}
}

func TestConvertErrors(t *testing.T) {
	dir, quiz, cfg := setup(t, "")
	bad := filepath.Join(dir, "bad.md")
	if err := os.WriteFile(bad, []byte("1. Q?\n"), 0644); err != nil {
		t.Fatal(err)
	}
	binary := filepath.Join(dir, "bin.md")
	if err := os.WriteFile(binary, []byte{0x89, 'P', 'N', 'G', 0, 1, 2}, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"semantic error", []string{"convert", bad}, 1, "must provide choices"},
		{"only solutions alone", []string{"convert", quiz, "--only-solutions"}, 1, "--solutions"},
		{"bad solutions extension", []string{"convert", quiz, "--solutions", filepath.Join(dir, "key.txt")}, 1, ".md, .html or .pdf"},
		{"bad seed", []string{"convert", quiz, "--seed", "x"}, 1, "seed"},
		{"binary input", []string{"convert", binary}, 1, "UTF-8"},
		{"missing file", []string{"convert", filepath.Join(dir, "nope.md")}, 2, "nope.md"},
		{"unknown command", []string{"frobnicate"}, 2, "frobnicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, append([]string{"--config", cfg}, tt.args...)...)
			if code != tt.code {
				t.Errorf("exit = %d, want %d (%s)", code, tt.code, errOut)
			}
			if !strings.Contains(errOut, tt.want) {
				t.Errorf("stderr = %q, want %q", errOut, tt.want)
			}
		})
	}
}

func TestSourceDateEpoch(t *testing.T) {
	_, quiz, cfg := setup(t, "")
	t.Setenv("SOURCE_DATE_EPOCH", "yesterday")
	code, _, errOut := runCLI(t, "--config", cfg, "convert", quiz)
	if code != 1 || !strings.Contains(errOut, "SOURCE_DATE_EPOCH") {
		t.Errorf("exit %d: %s", code, errOut)
	}
}

func TestCheck(t *testing.T) {
	dir, quiz, cfg := setup(t, "")

	t.Run("text", func(t *testing.T) {
		code, out, errOut := runCLI(t, "--config", cfg, "check", quiz, "--json")
		if code != 0 {
			t.Fatalf("exit %d: %s", code, errOut)
		}
		var s convert.Summary
		if err := json.Unmarshal([]byte(out), &s); err != nil {
			t.Fatal(err)
		}
		if s.Questions != 2 || s.PointsPossible != 3 {
			t.Errorf("summary = %+v", s)
		}
	})

	t.Run("archive", func(t *testing.T) {
		if code, _, errOut := runCLI(t, "--config", cfg, "convert", quiz); code != 0 {
			t.Fatalf("exit %d: %s", code, errOut)
		}
		code, out, errOut := runCLI(t, "--config", cfg, "check", filepath.Join(dir, "quiz.zip"), "--json")
		if code != 0 {
			t.Fatalf("exit %d: %s", code, errOut)
		}
		var s server.ArchiveInfo
		if err := json.Unmarshal([]byte(out), &s); err != nil {
			t.Fatal(err)
		}
		if s.Title != "Arithmetic" || s.Questions != 2 || s.PointsPossible != 3 {
			t.Errorf("summary = %+v", s)
		}
	})

	t.Run("table", func(t *testing.T) {
		code, out, _ := runCLI(t, "--config", cfg, "check", quiz)
		if code != 0 || !strings.Contains(out, "OK") || !strings.Contains(out, "Questions") {
			t.Errorf("exit %d, stdout %q", code, out)
		}
	})
}

func TestToken(t *testing.T) {
	_, _, cfg := setup(t, "server:\n  jwt_secret: 0123456789abcdef0123\n")
	code, out, errOut := runCLI(t, "--config", cfg, "token", "alice", "--ttl", "1h")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	claims, err := server.ParseToken("0123456789abcdef0123", strings.TrimSpace(out))
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "alice" {
		t.Errorf("subject = %q", claims.Subject)
	}

	_, _, noSecret := setup(t, "")
	if code, _, errOut := runCLI(t, "--config", noSecret, "token"); code != 1 || !strings.Contains(errOut, "jwt_secret") {
		t.Errorf("exit %d: %s", code, errOut)
	}
}

func TestCache(t *testing.T) {
	_, _, cfg := setup(t, "")

	code, out, errOut := runCLI(t, "--config", cfg, "cache", "stats", "--json")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var st map[string]interface{}
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatal(err)
	}
	if st["driver"] != "memory" || st["entries"] != float64(0) {
		t.Errorf("stats = %v", st)
	}

	for _, cmd := range []string{"prune", "clear"} {
		if code, _, errOut := runCLI(t, "--config", cfg, "cache", cmd); code != 0 {
			t.Errorf("cache %s: exit %d: %s", cmd, code, errOut)
		}
	}
}

func TestVersion(t *testing.T) {
	_, _, cfg := setup(t, "")
	code, out, _ := runCLI(t, "--config", cfg, "version")
	if code != 0 || !strings.Contains(out, version) {
		t.Errorf("exit %d, stdout %q", code, out)
	}
}

func TestConfigErrors(t *testing.T) {
	dir, quiz, _ := setup(t, "")
	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("cache: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if code, _, errOut := runCLI(t, "--config", broken, "convert", quiz); code != 1 || !strings.Contains(errOut, "config") {
		t.Errorf("exit %d: %s", code, errOut)
	}
	if code, _, _ := runCLI(t, "--config", filepath.Join(dir, "config.yaml"), "--log-level", "loud", "version"); code != 2 {
		t.Errorf("bad log level exit = %d", code)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 3 << 20: "3.0 MiB"}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
