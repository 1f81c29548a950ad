// Package usersync applies identity provider user webhooks to profiles.
// Deliveries are signed the Standard Webhooks way: an HMAC-SHA256 over
// "<id>.<timestamp>.<body>" keyed with the whsec_ secret.
package usersync

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Tolerance bounds the clock skew accepted between a delivery's timestamp
// and the local clock.
const Tolerance = 5 * time.Minute

var (
	// ErrMissingHeaders means the id, timestamp or signature header is absent.
	ErrMissingHeaders = errors.New("missing webhook signature headers")
	// ErrInvalidSignature covers stale timestamps and signature mismatches.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// headerNames lists the svix header set first, then the Standard Webhooks one.
var headerNames = [][3]string{
	{"svix-id", "svix-timestamp", "svix-signature"},
	{"webhook-id", "webhook-timestamp", "webhook-signature"},
}

// Verifier checks delivery signatures.
type Verifier struct {
	key []byte
	now func() time.Time
}

// NewVerifier accepts a whsec_ prefixed base64 key. Any other value is used
// as raw key bytes.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("usersync: webhook secret is required")
	}
	key := []byte(secret)
	if raw, ok := strings.CutPrefix(secret, "whsec_"); ok {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("usersync: decode secret: %w", err)
		}
		key = decoded
	}
	return &Verifier{key: key, now: time.Now}, nil
}

// Verify authenticates body against the signature headers in h.
func (v *Verifier) Verify(h http.Header, body []byte) error {
	id, ts, sigs := signatureHeaders(h)
	if id == "" || ts == "" || sigs == "" {
		return ErrMissingHeaders
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	sent := time.Unix(sec, 0)
	if skew := v.now().Sub(sent); skew > Tolerance || skew < -Tolerance {
		return ErrInvalidSignature
	}

	want := v.Sign(id, sent, body)
	for _, candidate := range strings.Fields(sigs) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(want)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign returns the base64 v1 signature for a delivery.
func (v *Verifier) Sign(id string, ts time.Time, body []byte) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id + "." + strconv.FormatInt(ts.Unix(), 10) + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signatureHeaders(h http.Header) (id, ts, sigs string) {
	for _, names := range headerNames {
		id, ts, sigs = h.Get(names[0]), h.Get(names[1]), h.Get(names[2])
		if id != "" || ts != "" || sigs != "" {
			return id, ts, sigs
		}
	}
	return "", "", ""
}
