package message_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mslclient/internal/crypto"
	"mslclient/internal/domain"
	"mslclient/internal/protocol/msl"
	"mslclient/internal/services/message"
	"mslclient/internal/services/session"
	"mslclient/internal/testsupport/mslserver"
	"mslclient/internal/transport"
)

const esn = "NFCDIE-03-TESTESN0001"

var (
	keyOnce sync.Once
	testKey domain.Keypair
)

type fixedKeypair struct{}

func (fixedKeypair) LoadOrCreate() (domain.Keypair, bool, error) {
	keyOnce.Do(func() {
		priv, err := crypto.GenerateKeypair()
		if err != nil {
			panic(err)
		}
		testKey = domain.Keypair{Private: priv}
	})
	return testKey, false, nil
}

func negotiated(t *testing.T, srv *mslserver.Server, base string, tr domain.Transport) domain.Session {
	t.Helper()
	cfg := session.Config{Identity: esn, Endpoint: base + "/msl/manifest", Scheme: domain.SchemeAsymmetricWrapped}
	sess, err := session.New(cfg, nil, fixedKeypair{}, nil, tr, nil, nil).Negotiate(context.Background())
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	return sess
}

func setup(t *testing.T) (*mslserver.Server, string, *transport.HTTP) {
	t.Helper()
	srv, err := mslserver.New()
	if err != nil {
		t.Fatalf("mslserver.New: %v", err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	tr, err := transport.NewHTTP(transport.Options{Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewHTTP: %v", err)
	}
	return srv, hs.URL, tr
}

func TestSend_RoundTripMultiChunk(t *testing.T) {
	srv, base, tr := setup(t)
	srv.Chunks = 3
	srv.Handle(msl.DefaultPath, func(req json.RawMessage) (any, error) {
		var in map[string]any
		if err := json.Unmarshal(req, &in); err != nil {
			return nil, err
		}
		return map[string]any{"result": map[string]any{"echo": in["method"]}}, nil
	})
	sess := negotiated(t, srv, base, tr)

	b := &msl.Builder{UserAuth: &domain.EmailPassword{Email: "user@example.com", Password: "secret"}}
	svc := message.New(tr, b, msl.Parser{}, nil)
	got, err := svc.Send(context.Background(), sess, base+"/msl/manifest", msl.DefaultPath, map[string]string{"method": "manifest"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if string(got) != `{"result":{"echo":"manifest"}}` {
		t.Fatalf("result = %s", got)
	}

	rec := srv.Received()
	if len(rec) != 1 {
		t.Fatalf("received = %d", len(rec))
	}
	if rec[0].Endpoint != "manifest" || rec[0].Path != msl.DefaultPath {
		t.Fatalf("received %+v", rec[0])
	}
	if rec[0].Header.UserAuthData == nil || rec[0].Header.UserAuthData.AuthData.Email != "user@example.com" {
		t.Fatalf("user auth not carried: %+v", rec[0].Header.UserAuthData)
	}
	if string(rec[0].Request) != `{"method":"manifest"}` {
		t.Fatalf("server decoded request %s", rec[0].Request)
	}
}

func TestSend_ServerErrorData(t *testing.T) {
	srv, base, tr := setup(t)
	sess := negotiated(t, srv, base, tr)
	svc := message.New(tr, nil, msl.Parser{}, nil)

	// No handler registered for the path: the peer answers with errordata.
	_, err := svc.Send(context.Background(), sess, base+"/msl/manifest", "/cbp/unknown", map[string]string{})
	var se *msl.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
}

func TestSend_StatusError(t *testing.T) {
	srv, base, tr := setup(t)
	sess := negotiated(t, srv, base, tr)
	srv.FailStatus = http.StatusForbidden
	svc := message.New(tr, nil, msl.Parser{}, nil)

	_, err := svc.Send(context.Background(), sess, base+"/msl/license", msl.DefaultPath, map[string]string{})
	var se *message.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusForbidden {
		t.Fatalf("err = %v, want StatusError 403", err)
	}
}

func TestSend_UnknownSession(t *testing.T) {
	srv, base, tr := setup(t)
	sess := negotiated(t, srv, base, tr)

	// A second peer never issued this token.
	other, err := mslserver.New()
	if err != nil {
		t.Fatalf("mslserver.New: %v", err)
	}
	hs := httptest.NewServer(other.Handler())
	defer hs.Close()

	svc := message.New(tr, nil, msl.Parser{}, nil)
	_, err = svc.Send(context.Background(), sess, hs.URL+"/msl/manifest", msl.DefaultPath, map[string]string{})
	var se *msl.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *ServerError", err)
	}
}
