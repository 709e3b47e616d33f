package test

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

// logsiftBinary is the path to the compiled logsift binary, set by TestMain.
var logsiftBinary string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	tmpDir, err := os.MkdirTemp("", "logsift-integration-build-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create temp dir: %v\n", err)
		os.Exit(1)
	}

	logsiftBinary = filepath.Join(tmpDir, "logsift")
	cmd := exec.Command("go", "build", "-o", logsiftBinary, "./cmd/logsift")
	// Test working dir is test/, so go up one level to project root
	cmd.Dir = filepath.Join("..")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "build logsift binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// --- Fixtures ---

// fixtureDayOne: startup noise, a Done line, two chat lines and a warning.
const fixtureDayOne = "[08:00:00] [Server thread/INFO]: Starting minecraft server version 1.20.1\n" +
	"[08:00:01] [Server thread/INFO]: Preparing level \"world\"\n" +
	"[08:00:04] [Server thread/INFO]: Done (3.512s)! For help, type \"help\"\n" +
	"[08:05:00] [Server thread/INFO]: <Steve> good morning\n" +
	"[08:06:00] [Server thread/WARN]: Can't keep up! Is the server overloaded?\n" +
	"[08:07:00] [Server thread/INFO]: <Alex> morning steve\n"

// fixtureDayTwo: no Done marker, so everything informational is kept.
const fixtureDayTwo = "[09:00:00] [Server thread/INFO]: Steve joined the game\n" +
	"[09:00:05] [User Authenticator #1/INFO]: UUID of player Steve is 1234\n" +
	"[09:01:00] [Server thread/INFO]: Steve has made the advancement [Stone Age]\n"

// --- Fake completions API ---

type fakeAPI struct {
	srv      *httptest.Server
	mu       sync.Mutex
	requests int
}

// newFakeAPI serves /completions by answering with the last non-empty line
// of each prompt.
func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" || r.Header.Get("Authorization") != "Bearer sk-integration" {
			http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
			return
		}
		var req struct {
			Prompt    string `json:"prompt"`
			MaxTokens int    `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests++
		f.mu.Unlock()

		lines := strings.Split(strings.TrimRight(req.Prompt, "\n"), "\n")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": lines[len(lines)-1] + "\n"}},
		})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// --- Helpers ---

type env struct {
	root   string
	in     string
	out    string
	state  string
	config string
	vars   []string
}

func newEnv(t *testing.T, api *fakeAPI) env {
	t.Helper()
	root := t.TempDir()
	e := env{
		root:   root,
		in:     filepath.Join(root, "in"),
		out:    filepath.Join(root, "out"),
		state:  filepath.Join(root, "state"),
		config: filepath.Join(root, "config.toml"),
	}
	if err := os.MkdirAll(e.in, 0o755); err != nil {
		t.Fatal(err)
	}

	baseURL := "http://127.0.0.1:1/v1"
	if api != nil {
		baseURL = api.srv.URL + "/v1"
	}
	cfg := fmt.Sprintf(`input_dir = '%s'
output_dir = '%s'
state_dir = '%s'

[summary]
api_key_env = "LOGSIFT_IT_KEY"
base_url = '%s'
max_retries = 1
retry_base_delay_ms = 10
`, e.in, e.out, e.state, baseURL)
	if err := os.WriteFile(e.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	e.vars = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + root,
		"XDG_CONFIG_HOME=" + filepath.Join(root, "xdg"),
		"LOGSIFT_IT_KEY=sk-integration",
	}
	return e
}

func runLogsift(t *testing.T, e env, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := exec.Command(logsiftBinary, append([]string{"--config", e.config}, args...)...)
	cmd.Env = e.vars
	cmd.Dir = e.root
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return outBuf.String(), errBuf.String(), err
}

func mustRunLogsift(t *testing.T, e env, args ...string) string {
	t.Helper()
	stdout, stderr, err := runLogsift(t, e, args...)
	if err != nil {
		t.Fatalf("logsift %s failed: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, stdout, stderr)
	}
	return stdout
}

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(content))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func assertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: expected to contain %q, got:\n%s", msg, substr, s)
	}
}

// --- Tests ---

func TestIntegration(t *testing.T) {
	api := newFakeAPI(t)
	e := newEnv(t, api)

	writeGzip(t, filepath.Join(e.in, "2026-01-01-1.log.gz"), fixtureDayOne)
	writeGzip(t, filepath.Join(e.in, "2026-01-02-1.log.gz"), fixtureDayTwo)
	os.MkdirAll(e.out, 0o755)
	os.WriteFile(filepath.Join(e.out, ".gitignore"), []byte("*\n"), 0o644)
	os.WriteFile(filepath.Join(e.out, "leftover.log"), []byte("old"), 0o644)

	t.Run("run", func(t *testing.T) {
		stdout := mustRunLogsift(t, e, "run")
		assertContains(t, stdout, "wrote:   2026-01-01-1.log (1 chunks)", "run output")
		assertContains(t, stdout, "wrote:   2026-01-02-1.log (1 chunks)", "run output")

		got := readFile(t, filepath.Join(e.out, "2026-01-01-1.log"))
		if got != "[Server thread/INFO]: <Alex> morning steve\n" {
			t.Errorf("day one summary = %q", got)
		}
		got = readFile(t, filepath.Join(e.out, "2026-01-02-1.log"))
		if got != "[Server thread/INFO]: Steve has made the advancement [Stone Age]\n" {
			t.Errorf("day two summary = %q", got)
		}

		if _, err := os.Stat(filepath.Join(e.out, "leftover.log")); !os.IsNotExist(err) {
			t.Error("output dir not cleared")
		}
		if readFile(t, filepath.Join(e.out, ".gitignore")) != "*\n" {
			t.Error("sentinel changed")
		}
		if api.count() != 2 {
			t.Errorf("requests = %d, want 2", api.count())
		}
	})

	t.Run("rerun is cached and identical", func(t *testing.T) {
		before := readFile(t, filepath.Join(e.out, "2026-01-01-1.log"))
		mustRunLogsift(t, e, "run")
		after := readFile(t, filepath.Join(e.out, "2026-01-01-1.log"))
		if before != after {
			t.Errorf("output changed: %q vs %q", before, after)
		}
		if api.count() != 2 {
			t.Errorf("requests = %d, want 2 (completion cache)", api.count())
		}
	})

	t.Run("status", func(t *testing.T) {
		stdout := mustRunLogsift(t, e, "status")
		assertContains(t, stdout, "STEM", "status header")
		assertContains(t, stdout, "2026-01-01-1", "status rows")
		assertContains(t, stdout, "2026-01-02-1", "status rows")
	})

	t.Run("filter", func(t *testing.T) {
		stdout := mustRunLogsift(t, e, "filter", filepath.Join(e.in, "2026-01-01-1.log.gz"))
		want := "[Server thread/INFO]: Done (3.512s)! For help, type \"help\"\n" +
			"[Server thread/INFO]: <Steve> good morning\n" +
			"[Server thread/INFO]: <Alex> morning steve\n"
		if stdout != want {
			t.Errorf("filter = %q, want %q", stdout, want)
		}
	})

	t.Run("check", func(t *testing.T) {
		stdout := mustRunLogsift(t, e, "check")
		assertContains(t, stdout, "logsift check", "check header")
		assertContains(t, stdout, "LOGSIFT_IT_KEY set", "api key row")
	})
}

func TestIntegration_MissingKey(t *testing.T) {
	e := newEnv(t, nil)
	e.vars = e.vars[:3]
	writeGzip(t, filepath.Join(e.in, "a.log.gz"), fixtureDayOne)

	_, stderr, err := runLogsift(t, e, "run")
	if err == nil {
		t.Fatal("expected failure without API key")
	}
	assertContains(t, stderr, "LOGSIFT_IT_KEY", "error names the variable")
	if _, err := os.Stat(e.out); !os.IsNotExist(err) {
		t.Error("output dir created before the credential check")
	}
}

func TestIntegration_CorruptArchive(t *testing.T) {
	api := newFakeAPI(t)
	e := newEnv(t, api)
	writeGzip(t, filepath.Join(e.in, "good.log.gz"), fixtureDayOne)
	os.WriteFile(filepath.Join(e.in, "broken.log.gz"), []byte("\x1f\x8b\x08\x00truncated"), 0o644)

	stdout, _, err := runLogsift(t, e, "run")
	if err == nil {
		t.Fatal("expected non-zero exit with a failed file")
	}
	assertContains(t, stdout, "failed:  broken", "failure reported")
	assertContains(t, stdout, "wrote:   good.log", "other files still written")
	if _, err := os.Stat(filepath.Join(e.out, "broken.log")); !os.IsNotExist(err) {
		t.Error("output written for corrupt archive")
	}
}

func TestIntegration_Watch(t *testing.T) {
	api := newFakeAPI(t)
	e := newEnv(t, api)

	cmd := exec.Command(logsiftBinary, "--config", e.config, "watch", "--debounce", "100ms")
	cmd.Env = e.vars
	cmd.Dir = e.root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start watch: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	defer func() {
		cmd.Process.Signal(os.Interrupt)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			cmd.Process.Kill()
		}
	}()

	// Wait for the initial batch to create the output dir.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(e.out); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	writeGzip(t, filepath.Join(e.in, "live.log.gz"), fixtureDayOne)

	out := filepath.Join(e.out, "live.log")
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(out); err == nil && len(data) > 0 {
			if string(data) != "[Server thread/INFO]: <Alex> morning steve\n" {
				t.Errorf("live summary = %q", data)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("watch did not produce %s\nstdout: %s\nstderr: %s", out, stdout.String(), stderr.String())
}
