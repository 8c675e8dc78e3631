package signing

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/paysign/internal/telemetry"
)

const signAB = "B9D014737A6137029B0D941E6DC2E469A3263824026F053FB62EBAFEB021C6C7" // sha256("a=1&b=2s")

var fixedNow = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestComputeSignatureKnownVector(t *testing.T) {
	out, err := ComputeSignature(map[string]any{"a": "1", "b": "2"}, "s")
	require.NoError(t, err)

	assert.Equal(t, signAB, out[SignKey])
	assert.Len(t, out[SignKey], 64)
	assert.Equal(t, "1", out["a"])
	assert.Equal(t, "2", out["b"])
}

func TestSignDeterministic(t *testing.T) {
	in := map[string]any{"a": "1", "b": 2, "timestamp": int64(1700000000000)}
	s := NewSigner("secret")

	first, err := s.Sign(in)
	require.NoError(t, err)
	second, err := s.Sign(in)
	require.NoError(t, err)

	assert.Equal(t, first[SignKey], second[SignKey])
	assert.Equal(t, int64(1700000000000), first[TimestampKey])
}

func TestSignOrderIndependent(t *testing.T) {
	type record struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	fromMap, err := ComputeSignature(map[string]string{"b": "2", "a": "1"}, "s")
	require.NoError(t, err)
	fromStruct, err := ComputeSignature(record{B: "2", A: "1"}, "s")
	require.NoError(t, err)
	fromValues, err := ComputeSignature(url.Values{"b": {"2"}, "a": {"1", "9"}}, "s")
	require.NoError(t, err)

	assert.Equal(t, signAB, fromMap[SignKey])
	assert.Equal(t, signAB, fromStruct[SignKey])
	assert.Equal(t, signAB, fromValues[SignKey])
}

func TestSignDropsEmptyValues(t *testing.T) {
	s := NewSigner("s", WithClock(fixedClock))

	withEmpty, err := s.Sign(map[string]any{"a": "", "b": nil, "c": "x"})
	require.NoError(t, err)
	plain, err := s.Sign(map[string]any{"c": "x"})
	require.NoError(t, err)

	assert.Equal(t, plain, withEmpty)
	assert.Equal(t, "F5D22A3ACD8D8830520624DEBF1836A520424DF74DCCA9F8E9B30C8FAB0352FA", withEmpty[SignKey])
	assert.NotContains(t, withEmpty, "a")
	assert.NotContains(t, withEmpty, "b")
}

func TestSignIgnoresItemList(t *testing.T) {
	for _, items := range []any{
		"x",
		[]any{map[string]any{"sku": "A1", "qty": 2}},
		nil,
		42,
	} {
		in := map[string]any{"a": "1", "b": "2", ItemListKey: items}
		out, err := ComputeSignature(in, "s")
		require.NoError(t, err)
		assert.Equal(t, signAB, out[SignKey])
		assert.NotContains(t, out, ItemListKey)
		assert.Contains(t, in, ItemListKey, "caller map must not be mutated")
	}
}

func TestSignTimestamp(t *testing.T) {
	t.Run("filled when absent", func(t *testing.T) {
		before := time.Now().UnixMilli()
		out, err := ComputeSignature(map[string]any{"a": "1"}, "s")
		require.NoError(t, err)
		after := time.Now().UnixMilli()

		ts, ok := out[TimestampKey].(int64)
		require.True(t, ok, "timestamp should be int64 millis, got %T", out[TimestampKey])
		assert.GreaterOrEqual(t, ts, before)
		assert.LessOrEqual(t, ts, after)
	})

	t.Run("filled from clock", func(t *testing.T) {
		out, err := NewSigner("s", WithClock(fixedClock)).Sign(map[string]any{"a": "1"})
		require.NoError(t, err)
		assert.Equal(t, fixedNow.UnixMilli(), out[TimestampKey])
	})

	t.Run("empty timestamp is refilled", func(t *testing.T) {
		out, err := NewSigner("s", WithClock(fixedClock)).Sign(map[string]any{"a": "1", TimestampKey: ""})
		require.NoError(t, err)
		assert.Equal(t, fixedNow.UnixMilli(), out[TimestampKey])
	})

	t.Run("preserved when present", func(t *testing.T) {
		out, err := NewSigner("s", WithClock(fixedClock)).Sign(map[string]any{"a": "1", TimestampKey: "1650000000000"})
		require.NoError(t, err)
		assert.Equal(t, "1650000000000", out[TimestampKey])
		assert.Equal(t, Digest("a=1&timestamp=1650000000000", "s"), out[SignKey])
	})
}

func TestSignOverwritesExistingSign(t *testing.T) {
	out, err := ComputeSignature(map[string]any{"a": "1", "b": "2", SignKey: "STALE"}, "s")
	require.NoError(t, err)
	assert.Equal(t, signAB, out[SignKey])
}

func TestSignMixedScalars(t *testing.T) {
	in := map[string]any{
		"amount":       decimal.RequireFromString("0.01"),
		"enabled":      true,
		"n":            42,
		"out_order_id": "T1",
	}
	out, err := ComputeSignature(in, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "39004332BF132EDFB91D792626A210E0005CA87F1D77BA53443BB2F769431CB9", out[SignKey])
}

func TestSignEmptySecret(t *testing.T) {
	out, err := ComputeSignature(map[string]any{"c": "x"}, "")
	require.NoError(t, err)
	assert.Equal(t, "92D5475EFF5DA1BD1E1A003D302E2686D932BD3D733AC36AC26034643347CA90", out[SignKey])
}

func TestSignExcludedKeys(t *testing.T) {
	out, err := NewSigner("s", WithExcludedKeys("notify_url")).Sign(map[string]any{
		"a": "1", "b": "2", "notify_url": "http://127.0.0.1/notify",
	})
	require.NoError(t, err)
	assert.Equal(t, signAB, out[SignKey])
	assert.NotContains(t, out, "notify_url")
}

func TestSignUnicodeNormalization(t *testing.T) {
	composed := map[string]any{"title": "caf\u00e9"}
	decomposed := map[string]any{"title": "cafe\u0301"}

	s := NewSigner("s", WithClock(fixedClock))
	a, err := s.Sign(composed)
	require.NoError(t, err)
	b, err := s.Sign(decomposed)
	require.NoError(t, err)
	assert.NotEqual(t, a[SignKey], b[SignKey], "bytes differ without normalization")

	s = NewSigner("s", WithClock(fixedClock), WithUnicodeNormalization(true))
	a, err = s.Sign(composed)
	require.NoError(t, err)
	b, err = s.Sign(decomposed)
	require.NoError(t, err)
	assert.Equal(t, a[SignKey], b[SignKey])
	assert.Equal(t, "caf\u00e9", b["title"])
}

func TestSignSerializationError(t *testing.T) {
	before := telemetry.Metrics.SerializationErrors.Value()

	for name, in := range map[string]any{
		"nil":           nil,
		"channel":       make(chan int),
		"array":         []string{"a"},
		"nested func":   map[string]any{"cb": func() {}},
		"nil struct":    (*struct{ A string })(nil),
		"scalar string": "a=1",
	} {
		t.Run(name, func(t *testing.T) {
			out, err := ComputeSignature(in, "s")
			require.Error(t, err)
			assert.Nil(t, out)

			var serr *SerializationError
			assert.True(t, errors.As(err, &serr))
		})
	}

	assert.Equal(t, before+6, telemetry.Metrics.SerializationErrors.Value())
}

func TestSignRejectsNonFiniteFloats(t *testing.T) {
	type ratio float64

	for name, v := range map[string]any{
		"nan":       math.NaN(),
		"+inf":      math.Inf(1),
		"-inf32":    float32(math.Inf(-1)),
		"named nan": ratio(math.NaN()),
	} {
		t.Run(name, func(t *testing.T) {
			out, err := ComputeSignature(map[string]any{"a": v, "b": "2"}, "s")
			assert.Nil(t, out)

			var serr *SerializationError
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, `field "a"`, serr.Source)
		})
	}

	out, err := ComputeSignature(map[string]any{"a": 1.5, "b": float32(0)}, "s")
	require.NoError(t, err)
	assert.Equal(t, Digest("a=1.5&b=0", "s"), out[SignKey])
}

func TestSignDebugNeverLogsSecret(t *testing.T) {
	var buf bytes.Buffer
	telemetry.InitWriter(&buf, slog.LevelDebug)
	t.Cleanup(func() { telemetry.Init(slog.LevelInfo) })

	_, err := NewSigner("topsecret", WithDebug(true)).Sign(map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "a=1&b=2")
	assert.Contains(t, buf.String(), Digest("a=1&b=2", "topsecret"))
	assert.NotContains(t, buf.String(), "topsecret")

	buf.Reset()
	_, err = NewSigner("topsecret").Sign(map[string]any{"a": "1", "b": "2"})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestSignerSignString(t *testing.T) {
	assert.Equal(t, signAB, NewSigner("s").SignString(ParameterSet{"a": "1", "b": "2"}))
}
