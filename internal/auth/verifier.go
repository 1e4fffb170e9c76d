// Package auth verifies identity secrets. Both backends fail closed: any
// transport error, lookup error or non-success response counts as a failed
// verification.
package auth

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Verifier answers whether secret is valid for id.
type Verifier interface {
	Verify(ctx context.Context, id uuid.UUID, secret string) bool
}

// HTTPVerifier delegates to a remote authorization service: GET
// <endpoint>/<id> with the presented secret and the service token as
// headers; any 2xx response verifies.
type HTTPVerifier struct {
	client   *http.Client
	endpoint string
	token    string
	log      *zap.Logger
}

func NewHTTPVerifier(endpoint, token string, log *zap.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		client:   &http.Client{Timeout: 5 * time.Second},
		endpoint: endpoint,
		token:    token,
		log:      log,
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, id uuid.UUID, secret string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"/"+id.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Secret", secret)
	req.Header.Set("Token", v.token)

	resp, err := v.client.Do(req)
	if err != nil {
		v.log.Warn("verifier request failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// KeyGetter is the slice of the etcd client the verifier needs.
// *clientv3.Client satisfies it.
type KeyGetter interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// EtcdVerifier looks the secret up under <prefix><id> and compares it with
// the presented one in constant time.
type EtcdVerifier struct {
	kv      KeyGetter
	prefix  string
	timeout time.Duration
}

func NewEtcdVerifier(kv KeyGetter, prefix string) *EtcdVerifier {
	return &EtcdVerifier{kv: kv, prefix: prefix, timeout: 5 * time.Second}
}

func (v *EtcdVerifier) Verify(ctx context.Context, id uuid.UUID, secret string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.kv.Get(ctx, v.prefix+id.String())
	if err != nil || len(resp.Kvs) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(resp.Kvs[0].Value, []byte(secret)) == 1
}
