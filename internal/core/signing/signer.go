package signing

import (
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/charleschow/paysign/internal/telemetry"
)

// Signer computes the request signature: uppercase hex SHA-256 over the
// canonical string followed by the shared secret.
//
// A Signer holds no mutable state and is safe for concurrent use.
//
// An empty secret is accepted and simply contributes nothing to the hash.
// Callers are responsible for supplying a real one.
type Signer struct {
	secret   string
	now      func() time.Time
	debug    bool
	nfc      bool
	excluded []string
}

type Option func(*Signer)

// WithClock overrides the clock used to fill in a missing timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithDebug logs the canonical string and the resulting signature at debug
// level. The secret is never logged.
func WithDebug(enabled bool) Option {
	return func(s *Signer) { s.debug = enabled }
}

// WithUnicodeNormalization applies NFC to keys and string values before
// signing. Only enable it when the verifying side does the same.
func WithUnicodeNormalization(enabled bool) Option {
	return func(s *Signer) { s.nfc = enabled }
}

// WithExcludedKeys drops further keys from the signed mapping, in addition to itemList.
func WithExcludedKeys(keys ...string) Option {
	return func(s *Signer) { s.excluded = append(s.excluded, keys...) }
}

func NewSigner(secret string, opts ...Option) *Signer {
	s := &Signer{
		secret:   secret,
		now:      time.Now,
		excluded: []string{ItemListKey},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComputeSignature signs param with secretKey using default options.
func ComputeSignature(param any, secretKey string) (ParameterSet, error) {
	return NewSigner(secretKey).Sign(param)
}

// Sign normalizes param, drops excluded and empty entries, and returns the
// resulting mapping with timestamp (when absent) and sign filled in.
func (s *Signer) Sign(param any) (ParameterSet, error) {
	params, err := Normalize(param)
	if err != nil {
		telemetry.Metrics.SerializationErrors.Inc()
		return nil, err
	}
	for _, k := range s.excluded {
		delete(params, k)
	}
	params = RemoveEmptyEntries(params)
	if s.nfc {
		params = normalizeUnicode(params)
	}

	canonical := Canonicalize(params)
	sign := Digest(canonical, s.secret)
	if s.debug {
		telemetry.Debugf("signing: canonical=%q sign=%s", canonical, sign)
	}

	if _, ok := params[TimestampKey]; !ok {
		params[TimestampKey] = s.now().UnixMilli()
	}
	params[SignKey] = sign

	telemetry.Metrics.SignaturesComputed.Inc()
	return params, nil
}

// SignString returns only the signature for an already filtered mapping.
func (s *Signer) SignString(params ParameterSet) string {
	return Digest(Canonicalize(params), s.secret)
}

// normalizeUnicode walks keys in sorted order so that keys which collide after
// normalization resolve the same way on every call.
func normalizeUnicode(params ParameterSet) ParameterSet {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(ParameterSet, len(params))
	for _, k := range keys {
		v := params[k]
		if str, ok := v.(string); ok {
			v = norm.NFC.String(str)
		}
		out[norm.NFC.String(k)] = v
	}
	return out
}
