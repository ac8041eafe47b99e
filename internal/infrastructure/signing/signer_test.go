package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func rsaKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return testKey
}

func writePEM(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadPrivateKey(t *testing.T) {
	key := rsaKey(t)

	t.Run("PKCS1", func(t *testing.T) {
		path := writePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))
		loaded, err := LoadPrivateKey(path)
		require.NoError(t, err)
		assert.True(t, key.Equal(loaded))
	})

	t.Run("PKCS8", func(t *testing.T) {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		require.NoError(t, err)
		loaded, err := LoadPrivateKey(writePEM(t, "PRIVATE KEY", der))
		require.NoError(t, err)
		assert.True(t, key.Equal(loaded))
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := LoadPrivateKey(filepath.Join(t.TempDir(), "missing.pem"))
		var loadErr *KeyLoadError
		require.ErrorAs(t, err, &loadErr)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("非 PEM 内容", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "garbage.pem")
		require.NoError(t, os.WriteFile(path, []byte("not a key"), 0o600))
		_, err := LoadPrivateKey(path)
		var loadErr *KeyLoadError
		assert.ErrorAs(t, err, &loadErr)
	})

	t.Run("非 RSA 私钥", func(t *testing.T) {
		ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		der, err := x509.MarshalPKCS8PrivateKey(ec)
		require.NoError(t, err)
		_, err = LoadPrivateKey(writePEM(t, "PRIVATE KEY", der))
		var loadErr *KeyLoadError
		assert.ErrorAs(t, err, &loadErr)
	})
}

func TestCanonicalize(t *testing.T) {
	a, err := Canonicalize(map[string]any{"b": 1, "a": map[string]any{"z": true, "y": "x"}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":"x","z":true},"b":1}`, string(a))

	_, err = Canonicalize(map[string]any{"fn": func() {}})
	var signErr *SigningError
	assert.ErrorAs(t, err, &signErr)
}

func TestCanonicalizeSafeIntegers(t *testing.T) {
	t.Run("2^53 以内的整数原样保留", func(t *testing.T) {
		body, err := Canonicalize(map[string]any{"record_id": int64(1 << 53), "neg": int64(-(1 << 53))})
		require.NoError(t, err)
		assert.Equal(t, `{"neg":-9007199254740992,"record_id":9007199254740992}`, string(body))
	})

	t.Run("超出 2^53 的整数被拒绝而不是改写", func(t *testing.T) {
		_, err := Canonicalize(map[string]any{"record_id": int64(9007199254740993)})
		var signErr *SigningError
		require.ErrorAs(t, err, &signErr)
		assert.ErrorIs(t, err, ErrUnsafeInteger)
		assert.Contains(t, err.Error(), "$.record_id")
	})

	t.Run("嵌套数组中的大整数同样被拒绝", func(t *testing.T) {
		_, err := Canonicalize(map[string]any{
			"inputs": map[string]any{"ids": []any{1, uint64(1 << 60)}},
		})
		assert.ErrorIs(t, err, ErrUnsafeInteger)
		assert.Contains(t, err.Error(), "$.inputs.ids[1]")
	})

	t.Run("浮点数不受整数范围限制", func(t *testing.T) {
		body, err := Canonicalize(map[string]any{"score": 0.5})
		require.NoError(t, err)
		assert.Equal(t, `{"score":0.5}`, string(body))
	})
}

func TestSign(t *testing.T) {
	key := rsaKey(t)
	signer := NewSignerWithKey(key, "fp-1")

	payload := map[string]any{
		"workflow_id": "wf-1",
		"inputs":      map[string]any{"content": "今天心情很好"},
		"timestamp":   int64(1700000000),
		"app_id":      "app",
	}

	t.Run("签名确定且可验证", func(t *testing.T) {
		sig1, err := signer.Sign(payload)
		require.NoError(t, err)

		reordered := map[string]any{
			"app_id":      "app",
			"timestamp":   int64(1700000000),
			"inputs":      map[string]any{"content": "今天心情很好"},
			"workflow_id": "wf-1",
		}
		sig2, err := signer.Sign(reordered)
		require.NoError(t, err)
		assert.Equal(t, sig1, sig2)

		body, err := Canonicalize(payload)
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(sig1)
		require.NoError(t, err)
		digest := sha256.Sum256(body)
		assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], raw))
	})

	t.Run("任一字段变化签名随之变化", func(t *testing.T) {
		sig1, err := signer.Sign(payload)
		require.NoError(t, err)

		changed := map[string]any{}
		for k, v := range payload {
			changed[k] = v
		}
		changed["timestamp"] = int64(1700000001)
		sig2, err := signer.Sign(changed)
		require.NoError(t, err)
		assert.NotEqual(t, sig1, sig2)
	})

	t.Run("SignPayload 返回被签名的字节", func(t *testing.T) {
		body, sig, err := signer.SignPayload(payload)
		require.NoError(t, err)
		direct, err := signer.SignBytes(body)
		require.NoError(t, err)
		assert.Equal(t, direct, sig)
		assert.Equal(t, "fp-1", signer.Fingerprint())
	})

	t.Run("私钥缺失时快速失败", func(t *testing.T) {
		_, err := NewSignerWithKey(nil, "fp").Sign(payload)
		assert.ErrorIs(t, err, ErrKeyUnavailable)

		var nilSigner *Signer
		_, err = nilSigner.SignBytes([]byte("x"))
		assert.ErrorIs(t, err, ErrKeyUnavailable)
	})
}

func TestNewSigner(t *testing.T) {
	key := rsaKey(t)
	path := writePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))

	signer, err := NewSigner(path, "fp")
	require.NoError(t, err)
	_, err = signer.Sign(map[string]any{"a": 1})
	assert.NoError(t, err)

	_, err = NewSigner(filepath.Join(t.TempDir(), "nope.pem"), "fp")
	var loadErr *KeyLoadError
	assert.ErrorAs(t, err, &loadErr)
}
