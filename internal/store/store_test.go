package store_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mslclient/internal/domain"
	"mslclient/internal/store"
	"mslclient/internal/testsupport/mslserver"
)

const esn = "NFCDIE-03-TESTESN0001"

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sessionExpiringAt(t *testing.T, at time.Time) domain.Session {
	t.Helper()
	sess, err := domain.NewSession(esn, mslserver.NewToken(3, at), domain.SessionKeys{
		Encryption: bytes.Repeat([]byte{1}, 16),
		Signing:    bytes.Repeat([]byte{2}, 32),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func fixedClock() func() time.Time { return func() time.Time { return t0 } }

func TestTokenFile_SaveLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := store.NewTokenFileStore(dir, esn, store.Options{Now: fixedClock()})

	want := sessionExpiringAt(t, t0.Add(24*time.Hour))
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.MasterToken != want.MasterToken || got.KeyID() != want.KeyID() {
		t.Fatalf("token mismatch after load")
	}
	if !bytes.Equal(got.Keys.Encryption, want.Keys.Encryption) || !bytes.Equal(got.Keys.Signing, want.Keys.Signing) {
		t.Fatalf("keys mismatch after load")
	}

	info, err := os.Stat(filepath.Join(dir, store.TokenFilename))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestTokenFile_DocumentShape(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := store.NewTokenFileStore(dir, esn, store.Options{Now: fixedClock()})
	if err := s.Save(ctx, sessionExpiringAt(t, t0.Add(24*time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, k := range []string{`"encryption_key"`, `"sign_key"`, `"tokens"`, `"mastertoken"`, `"tokendata"`} {
		if !bytes.Contains(b, []byte(k)) {
			t.Fatalf("cache document missing %s:\n%s", k, b)
		}
	}
}

func TestTokenFile_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		expires time.Duration
		want    bool
	}{
		{"10h1m accepted", 10*time.Hour + time.Minute, true},
		{"9h59m rejected", 9*time.Hour + 59*time.Minute, false},
		{"expired rejected", -time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := store.NewTokenFileStore(t.TempDir(), esn, store.Options{Now: fixedClock()})
			if err := s.Save(ctx, sessionExpiringAt(t, t0.Add(tc.expires))); err != nil {
				t.Fatalf("Save: %v", err)
			}
			_, ok, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if ok != tc.want {
				t.Fatalf("ok = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestTokenFile_CustomMargin(t *testing.T) {
	ctx := context.Background()
	s := store.NewTokenFileStore(t.TempDir(), esn, store.Options{Now: fixedClock(), Margin: time.Hour})
	if err := s.Save(ctx, sessionExpiringAt(t, t0.Add(2*time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, _ := s.Load(ctx); !ok {
		t.Fatalf("expected hit with a 1h margin")
	}
}

func TestTokenFile_MissingOrGarbled(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"garbage":        "not json at all",
		"empty object":   "{}",
		"bad base64":     `{"encryption_key":"!!","sign_key":"AA==","tokens":{"mastertoken":{"tokendata":"e30=","signature":""}}}`,
		"bad tokendata":  `{"encryption_key":"AAAAAAAAAAAAAAAAAAAAAA==","sign_key":"AA==","tokens":{"mastertoken":{"tokendata":"%%%","signature":""}}}`,
		"no expiration":  `{"encryption_key":"AAAAAAAAAAAAAAAAAAAAAA==","sign_key":"AA==","tokens":{"mastertoken":{"tokendata":"e30=","signature":""}}}`,
		"truncated file": `{"encryption_key":"AAAA`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, store.TokenFilename), []byte(content), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			s := store.NewTokenFileStore(dir, esn, store.Options{Now: fixedClock()})
			if _, ok, err := s.Load(ctx); ok || err != nil {
				t.Fatalf("Load = ok %v, err %v; want absent", ok, err)
			}
		})
	}

	s := store.NewTokenFileStore(filepath.Join(t.TempDir(), "missing"), esn, store.Options{})
	if _, ok, err := s.Load(ctx); ok || err != nil {
		t.Fatalf("missing dir: ok %v, err %v", ok, err)
	}
}

func TestTokenFile_Clear(t *testing.T) {
	ctx := context.Background()
	s := store.NewTokenFileStore(t.TempDir(), esn, store.Options{Now: fixedClock(), Lock: true})
	if err := s.Save(ctx, sessionExpiringAt(t, t0.Add(24*time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Fatalf("expected miss after Clear")
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}

func TestTokenFile_LockedRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := store.NewTokenFileStore(dir, esn, store.Options{Now: fixedClock(), Lock: true})
	b := store.NewTokenFileStore(dir, esn, store.Options{Now: fixedClock(), Lock: true})

	if err := a.Save(ctx, sessionExpiringAt(t, t0.Add(24*time.Hour))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, err := b.Load(ctx); !ok || err != nil {
		t.Fatalf("Load through second store: ok %v err %v", ok, err)
	}
}
