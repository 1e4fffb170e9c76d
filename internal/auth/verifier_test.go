package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

func TestHTTPVerifier(t *testing.T) {
	id := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+id.String() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Token") != "service-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("Secret") != "letmein" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "service-token", zap.NewNop())

	if !v.Verify(context.Background(), id, "letmein") {
		t.Fatal("valid secret rejected")
	}
	if v.Verify(context.Background(), id, "wrong") {
		t.Fatal("invalid secret accepted")
	}
	if v.Verify(context.Background(), uuid.New(), "letmein") {
		t.Fatal("unknown identity accepted")
	}
}

func TestHTTPVerifierFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	srv.Close() // connection refused from here on

	v := NewHTTPVerifier(srv.URL, "t", zap.NewNop())
	if v.Verify(context.Background(), uuid.New(), "s") {
		t.Fatal("transport failure verified a secret")
	}
}

type fakeKV struct {
	secrets map[string][]byte
	err     error
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	val, ok := f.secrets[key]
	if !ok {
		return &clientv3.GetResponse{}, nil
	}
	return &clientv3.GetResponse{
		Kvs:   []*mvccpb.KeyValue{{Key: []byte(key), Value: val}},
		Count: 1,
	}, nil
}

func TestEtcdVerifier(t *testing.T) {
	id := uuid.New()
	kv := &fakeKV{secrets: map[string][]byte{
		"/chatter/secrets/" + id.String(): []byte("letmein"),
	}}
	v := NewEtcdVerifier(kv, "/chatter/secrets/")

	if !v.Verify(context.Background(), id, "letmein") {
		t.Fatal("valid secret rejected")
	}
	if v.Verify(context.Background(), id, "wrong") {
		t.Fatal("invalid secret accepted")
	}
	if v.Verify(context.Background(), uuid.New(), "letmein") {
		t.Fatal("missing key verified a secret")
	}
}

func TestEtcdVerifierFailsClosed(t *testing.T) {
	kv := &fakeKV{err: errors.New("etcdserver: request timed out")}
	v := NewEtcdVerifier(kv, "/chatter/secrets/")

	if v.Verify(context.Background(), uuid.New(), "s") {
		t.Fatal("lookup failure verified a secret")
	}
}
