package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mslclient/cmd/msl/commands"
	"mslclient/internal/protocol/msl"
	"mslclient/internal/store"
	"mslclient/internal/testsupport/mslserver"
)

func writeConfig(t *testing.T, base, cacheDir string) string {
	t.Helper()
	body := fmt.Sprintf(`
[msl]
esn = "NFCDIE-03-CLITEST0001"

[endpoints]
manifest = "%s/msl/manifest"
license = "%s/msl/license"

[cache]
dir = %q

[logging]
level = "error"
`, base, base, filepath.ToSlash(cacheDir))
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := commands.NewRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("msl %s: %v (%s)", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestCLI_NegotiateRequestClear(t *testing.T) {
	srv, err := mslserver.New()
	if err != nil {
		t.Fatalf("mslserver.New: %v", err)
	}
	srv.Handle(msl.DefaultPath, func(req json.RawMessage) (any, error) {
		var in struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(req, &in); err != nil {
			return nil, err
		}
		return map[string]any{"result": in.Method}, nil
	})
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	cacheDir := t.TempDir()
	cfg := writeConfig(t, hs.URL, cacheDir)

	out := run(t, "--config", cfg, "negotiate")
	var neg struct {
		Identity       string `json:"identity"`
		SequenceNumber int64  `json:"sequencenumber"`
	}
	if err := json.Unmarshal([]byte(out), &neg); err != nil {
		t.Fatalf("negotiate output %q: %v", out, err)
	}
	if neg.Identity != "NFCDIE-03-CLITEST0001" || neg.SequenceNumber != 1 {
		t.Fatalf("negotiate = %+v", neg)
	}

	out = run(t, "--config", cfg, "request", `{"method":"ping"}`)
	if !strings.Contains(out, `"result": "ping"`) {
		t.Fatalf("request output %q", out)
	}
	if n := len(srv.Handshakes()); n != 1 {
		t.Fatalf("handshakes = %d, want 1 (second command should reuse the cache)", n)
	}

	run(t, "--config", cfg, "cache", "clear")
	if _, err := os.Stat(filepath.Join(cacheDir, store.TokenFilename)); !os.IsNotExist(err) {
		t.Fatalf("token file still present: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, store.KeypairFilename)); err != nil {
		t.Fatalf("keypair should survive a plain clear: %v", err)
	}
}

func TestCLI_RejectsInvalidJSON(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1", t.TempDir())
	root := commands.NewRootCommand()
	root.SetArgs([]string{"--config", cfg, "request", "{not json"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected error for invalid body")
	}
}

func TestCLI_RejectsWidevineWithoutDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[msl]\nesn = \"NFCDIE-03-CLITEST0002\"\nscheme = \"widevine\"\n\n[cache]\ndir = " +
		fmt.Sprintf("%q", filepath.ToSlash(t.TempDir())) + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	root := commands.NewRootCommand()
	root.SetArgs([]string{"--config", path, "negotiate"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	if err == nil || !strings.Contains(err.Error(), "decryption device") {
		t.Fatalf("err = %v, want a decryption device error", err)
	}
}
