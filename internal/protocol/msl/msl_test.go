package msl_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
	"mslclient/internal/testsupport/mslserver"
)

const esn = "NFCDIE-03-TESTESN0001"

func testSession(t *testing.T) domain.Session {
	t.Helper()
	keys := domain.SessionKeys{
		Encryption: bytes.Repeat([]byte{0x11}, 16),
		Signing:    bytes.Repeat([]byte{0x22}, 32),
	}
	sess, err := domain.NewSession(esn, mslserver.NewToken(7, time.Now().Add(24*time.Hour)), keys)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func decodeObjects(t *testing.T, raw []byte) []map[string]json.RawMessage {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(raw))
	var out []map[string]json.RawMessage
	for dec.More() {
		var m map[string]json.RawMessage
		if err := dec.Decode(&m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestBuild_WireShape(t *testing.T) {
	sess := testSession(t)
	b := &msl.Builder{}
	req, err := b.Build(sess, msl.DefaultPath, map[string]string{"method": "manifest"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	objs := decodeObjects(t, req.Body)
	if len(objs) != 2 {
		t.Fatalf("objects = %d, want 2", len(objs))
	}
	for _, k := range []string{"headerdata", "signature", "mastertoken"} {
		if _, ok := objs[0][k]; !ok {
			t.Fatalf("header block missing %q", k)
		}
	}
	for _, k := range []string{"payload", "signature"} {
		if _, ok := objs[1][k]; !ok {
			t.Fatalf("payload block missing %q", k)
		}
	}
	if bytes.Contains(req.Body, []byte("}\n{")) || !bytes.Contains(req.Body, []byte("}{")) {
		t.Fatalf("blocks must be concatenated without separator")
	}
}

func TestBuild_HeaderAndChunkDecrypt(t *testing.T) {
	sess := testSession(t)
	b := &msl.Builder{UserAuth: &domain.EmailPassword{Email: "a@b.c", Password: "pw"}}
	req, err := b.Build(sess, "/cbp/test", map[string]string{"method": "manifest"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	frames, err := msl.SplitFrames(req.Body)
	if err != nil {
		t.Fatalf("SplitFrames: %v", err)
	}

	env, _ := crypto.DecodeB64(frames.Header.HeaderData)
	if !msl.VerifySignature(sess, env, frames.Header.Signature) {
		t.Fatalf("header signature does not verify")
	}
	var e domain.Envelope
	if err := json.Unmarshal(env, &e); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if e.KeyID != esn+"_7" || e.SHA256 != "AA==" {
		t.Fatalf("envelope keyid=%q sha256=%q", e.KeyID, e.SHA256)
	}
	plain, err := msl.Open(sess, env)
	if err != nil {
		t.Fatalf("Open header: %v", err)
	}
	var hdr domain.Header
	if err := json.Unmarshal(plain, &hdr); err != nil {
		t.Fatalf("header: %v", err)
	}
	if hdr.Handshake || hdr.Sender != esn || hdr.Recipient != msl.DefaultRecipient || hdr.MessageID != req.MessageID {
		t.Fatalf("unexpected header %+v", hdr)
	}
	if hdr.UserAuthData == nil || hdr.UserAuthData.AuthData.Email != "a@b.c" {
		t.Fatalf("userauthdata missing: %+v", hdr.UserAuthData)
	}

	penv, _ := crypto.DecodeB64(frames.Payloads[0].Payload)
	plain, err = msl.Open(sess, penv)
	if err != nil {
		t.Fatalf("Open payload: %v", err)
	}
	var pc domain.PayloadChunk
	if err := json.Unmarshal(plain, &pc); err != nil {
		t.Fatalf("chunk: %v", err)
	}
	if pc.CompressionAlgo != "GZIP" || !pc.EndOfMsg || pc.SequenceNumber != 1 || pc.MessageID != req.MessageID {
		t.Fatalf("unexpected chunk %+v", pc)
	}
	gz, _ := crypto.DecodeB64(pc.Data)
	data, err := crypto.Gunzip(gz)
	if err != nil {
		t.Fatalf("Gunzip: %v", err)
	}
	want := `[{},{"headers":{},"path":"/cbp/test","payload":{"data":"{\"method\":\"manifest\"}"},"query":""}]` + "\n"
	if string(data) != want {
		t.Fatalf("payload data\n got %q\nwant %q", data, want)
	}
}

func TestParse_EndToEnd(t *testing.T) {
	sess := testSession(t)
	if _, err := (&msl.Builder{}).Build(sess, msl.DefaultPath, map[string]string{"method": "manifest"}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	result := map[string]any{"result": map[string]any{"viewables": []any{map[string]any{"playbackContextId": "ctx"}}}}
	raw, err := mslserver.EncodeResponse(sess, result, 1)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	got, err := msl.Parser{}.Parse(sess, raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want, _ := json.Marshal(result)
	if !bytes.Equal(got, want) {
		t.Fatalf("result\n got %s\nwant %s", got, want)
	}
}

func TestParse_MultiChunkReassembly(t *testing.T) {
	sess := testSession(t)
	result := map[string]any{"result": strings.Repeat("license-bytes-", 200)}
	want, _ := json.Marshal(result)
	for _, n := range []int{1, 2, 3, 7} {
		raw, err := mslserver.EncodeResponse(sess, result, n)
		if err != nil {
			t.Fatalf("EncodeResponse(%d): %v", n, err)
		}
		frames, err := msl.SplitFrames(raw)
		if err != nil {
			t.Fatalf("SplitFrames(%d): %v", n, err)
		}
		if len(frames.Payloads) != n {
			t.Fatalf("chunks = %d, want %d", len(frames.Payloads), n)
		}
		got, err := msl.Parser{}.Parse(sess, raw)
		if err != nil {
			t.Fatalf("Parse(%d): %v", n, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("reassembly with %d chunks differs", n)
		}
	}
}

func TestParse_TamperedSignature(t *testing.T) {
	sess := testSession(t)
	raw, err := mslserver.EncodeResponse(sess, map[string]int{"ok": 1}, 2)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	frames, err := msl.SplitFrames(raw)
	if err != nil {
		t.Fatalf("SplitFrames: %v", err)
	}
	bad := crypto.B64(bytes.Repeat([]byte{0x42}, 32))
	tampered := bytes.Replace(raw, []byte(frames.Payloads[1].Signature), []byte(bad), 1)

	_, err = msl.Parser{Verify: msl.VerifyStrict}.Parse(sess, tampered)
	if !errors.Is(err, msl.ErrSignature) {
		t.Fatalf("strict: err = %v, want ErrSignature", err)
	}
	got, err := msl.Parser{Verify: msl.VerifyNone}.Parse(sess, tampered)
	if err != nil {
		t.Fatalf("none: %v", err)
	}
	if string(got) != `{"ok":1}` {
		t.Fatalf("none: got %s", got)
	}
}

func TestParse_WrongKeyFailsDecryption(t *testing.T) {
	sess := testSession(t)
	raw, err := mslserver.EncodeResponse(sess, map[string]int{"ok": 1}, 1)
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}
	other, err := domain.NewSession(esn, sess.MasterToken, domain.SessionKeys{
		Encryption: bytes.Repeat([]byte{0x33}, 16),
		Signing:    sess.Keys.Signing,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := (msl.Parser{}).Parse(other, raw); !errors.Is(err, msl.ErrDecryption) {
		t.Fatalf("err = %v, want ErrDecryption", err)
	}
}

func TestParse_ErrorData(t *testing.T) {
	sess := testSession(t)
	_, err := msl.Parser{}.Parse(sess, mslserver.EncodeError("Entity not authorized", 7))
	var se *msl.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
	if se.Message != "Entity not authorized" || se.Code != 7 {
		t.Fatalf("unexpected server error %+v", se)
	}
}

func TestSplitFrames_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":         ``,
		"truncated":     `{"headerdata":"aGk=","signature":"c2ln"}{"payload":"cA==",`,
		"no chunks":     `{"headerdata":"aGk=","signature":"c2ln"}`,
		"no headerdata": `{"signature":"c2ln"}{"payload":"cA==","signature":"c2ln"}`,
		"no signature":  `{"headerdata":"aGk=","signature":"c2ln"}{"payload":"cA=="}`,
		"not json":      `<html>gateway timeout</html>`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := msl.SplitFrames([]byte(raw)); !errors.Is(err, msl.ErrFraming) {
				t.Fatalf("err = %v, want ErrFraming", err)
			}
		})
	}
}

func TestSplitFrames_SignatureContainingBraces(t *testing.T) {
	raw := `{"headerdata":"aGk=","signature":"x}}y"}{"payload":"cA==","signature":"}}\"signature\":\"}}"}`
	frames, err := msl.SplitFrames([]byte(raw))
	if err != nil {
		t.Fatalf("SplitFrames: %v", err)
	}
	if len(frames.Payloads) != 1 || frames.Payloads[0].Signature != `}}"signature":"}}` {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestParseVerifyMode(t *testing.T) {
	for in, want := range map[string]msl.VerifyMode{"": msl.VerifyStrict, "strict": msl.VerifyStrict, "None": msl.VerifyNone, "off": msl.VerifyNone} {
		got, err := msl.ParseVerifyMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseVerifyMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := msl.ParseVerifyMode("sometimes"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestNewMessageID_Range(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := msl.NewMessageID(nil)
		if err != nil {
			t.Fatalf("NewMessageID: %v", err)
		}
		if id < 0 || id > msl.MaxMessageID {
			t.Fatalf("id %d out of range", id)
		}
	}
}

// Vectors below were produced outside Go (openssl aes-128-cbc, HMAC-SHA256,
// gzip) for the session returned by testSession.

func TestSeal_KnownAnswer(t *testing.T) {
	sess := testSession(t)
	iv := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	env, sig, err := msl.Seal(sess, []byte("hello msl"), bytes.NewReader(iv))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	const wantEnv = `{"ciphertext":"atlI6f4CRD+vzS9q9eR4tQ==","keyid":"NFCDIE-03-TESTESN0001_7","sha256":"AA==","iv":"AAECAwQFBgcICQoLDA0ODw=="}`
	if string(env) != wantEnv {
		t.Fatalf("envelope\n got %s\nwant %s", env, wantEnv)
	}
	const wantSig = "p6YKWG49Tm7Gk9sBnDnFUFw5q6iHfMWNVm3r9AoScDE="
	if crypto.B64(sig) != wantSig {
		t.Fatalf("signature = %s, want %s", crypto.B64(sig), wantSig)
	}
	if !msl.VerifySignature(sess, []byte(wantEnv), wantSig) {
		t.Fatalf("known signature does not verify")
	}
	plain, err := msl.Open(sess, []byte(wantEnv))
	if err != nil || string(plain) != "hello msl" {
		t.Fatalf("Open = %q, %v", plain, err)
	}
}

func TestParse_KnownAnswerResponse(t *testing.T) {
	sess := testSession(t)
	const raw = `{"headerdata":"aGVhZGVy","signature":"c2ln"}` +
		`{"payload":"eyJjaXBoZXJ0ZXh0IjoiQTFMdnl3VklSZHRzdUozOHkxVWV0ZUxlS1FEQWFpdTRiRTQrSjR3U3dpbnNpWG9MS0JQbGV5UmFOanJ5Ui8wc1l6Nm81THlSOWNjQUZqK3Jaa1VJTlE1N0Rsd2E4aVhxU2NDWEluOWs1L2owcUd0TjFxRkw3SzFFQU43WGF3QVFuU25GZjZnRGQyV3ZrcnZRMW5yTGoyQndPbFR3MEs2MXhKMDNwV3BCUXRJcTh4WGxpU3o4N05KUlY0S0ZCQUFVc3R0cGwzdzFib3lMbkZIWGdjekd2eXVFRzNmZzJYTEFVOHpnWFJTdWU2U2p6RkRiczJDcElISXhlcC9qNVFpeVhjSVhxSGxJR0pWajBiaWxuREFMUnc9PSIsImtleWlkIjoiTkZDRElFLTAzLVRFU1RFU04wMDAxXzciLCJzaGEyNTYiOiJBQT09IiwiaXYiOiJFQkVTRXhRVkZoY1lHUm9iSEIwZUh3PT0ifQ==",` +
		`"signature":"G6Ahh2LJnDHBUsETf5VIlQxP6DTmgdWO4IbLmz5Ce40="}`

	got, err := msl.Parser{Verify: msl.VerifyStrict}.Parse(sess, []byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(got) != `{"result":"ok"}` {
		t.Fatalf("result = %s", got)
	}
}

func TestBuild_DoesNotEscapeHTML(t *testing.T) {
	sess := testSession(t)
	b := &msl.Builder{UserAuth: &domain.EmailPassword{Email: "a&b@example.com", Password: "<p&ss>"}}
	req, err := b.Build(sess, msl.DefaultPath, map[string]string{"q": "x&y"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	frames, err := msl.SplitFrames(req.Body)
	if err != nil {
		t.Fatalf("SplitFrames: %v", err)
	}
	env, _ := crypto.DecodeB64(frames.Header.HeaderData)
	plain, err := msl.Open(sess, env)
	if err != nil {
		t.Fatalf("Open header: %v", err)
	}
	if !bytes.Contains(plain, []byte(`"email":"a&b@example.com","password":"<p&ss>"`)) {
		t.Fatalf("header escapes credentials: %s", plain)
	}
}
