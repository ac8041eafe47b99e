// Package signing 提供工作流请求的 RSA 签名
package signing

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gowebpki/jcs"
)

// ErrKeyUnavailable 私钥未加载
var ErrKeyUnavailable = errors.New("signing: private key unavailable")

// KeyLoadError 私钥文件缺失或格式错误
type KeyLoadError struct {
	Path string
	Err  error
}

func (e *KeyLoadError) Error() string {
	return fmt.Sprintf("signing: load private key %s: %v", e.Path, e.Err)
}

func (e *KeyLoadError) Unwrap() error { return e.Err }

// SigningError 规范化或签名运算失败
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing: %s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Signer 持有进程内唯一的私钥句柄。构造后只读，可被并发调用方共享。
type Signer struct {
	key         *rsa.PrivateKey
	fingerprint string
}

// NewSigner 从 PEM 文件加载私钥
func NewSigner(keyPath, fingerprint string) (*Signer, error) {
	key, err := LoadPrivateKey(keyPath)
	if err != nil {
		return nil, err
	}
	return NewSignerWithKey(key, fingerprint), nil
}

// NewSignerWithKey 使用已加载的私钥构造 Signer
func NewSignerWithKey(key *rsa.PrivateKey, fingerprint string) *Signer {
	return &Signer{key: key, fingerprint: fingerprint}
}

// LoadPrivateKey 读取未加密的 PEM 私钥，支持 PKCS#1 与 PKCS#8
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &KeyLoadError{Path: path, Err: err}
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, &KeyLoadError{Path: path, Err: errors.New("no PEM block found")}
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, &KeyLoadError{Path: path, Err: err}
		}
		return key, nil
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, &KeyLoadError{Path: path, Err: err}
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, &KeyLoadError{Path: path, Err: fmt.Errorf("unsupported key type %T", parsed)}
		}
		return key, nil
	default:
		return nil, &KeyLoadError{Path: path, Err: fmt.Errorf("unsupported PEM block %q", block.Type)}
	}
}

// Fingerprint 返回公钥指纹（配置项，非机密）
func (s *Signer) Fingerprint() string {
	return s.fingerprint
}

// Canonicalize 按 RFC 8785 输出键有序的 JSON，签名方与校验方据此得到相同字节
func Canonicalize(payload map[string]any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &SigningError{Op: "marshal payload", Err: err}
	}
	if err := checkSafeIntegers(raw); err != nil {
		return nil, &SigningError{Op: "canonicalize payload", Err: err}
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, &SigningError{Op: "canonicalize payload", Err: err}
	}
	return canonical, nil
}

// maxSafeInteger RFC 8785 以 IEEE 754 double 表示数字，超出 ±2^53 的整数无法精确往返
const maxSafeInteger = 1 << 53

// ErrUnsafeInteger 整数超出 double 可精确表示的范围
var ErrUnsafeInteger = errors.New("integer exceeds IEEE 754 safe range")

// checkSafeIntegers 拒绝规范化后会被静默改写的整数
func checkSafeIntegers(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return walkNumbers(v, "$")
}

func walkNumbers(v any, path string) error {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if err := walkNumbers(child, path+"."+k); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range val {
			if err := walkNumbers(child, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case json.Number:
		s := val.String()
		if strings.ContainsAny(s, ".eE") {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n > maxSafeInteger || n < -maxSafeInteger {
			return fmt.Errorf("%w: %s=%s", ErrUnsafeInteger, path, s)
		}
	}
	return nil
}

// Sign 返回 payload 规范化字节的 base64 签名
func (s *Signer) Sign(payload map[string]any) (string, error) {
	_, sig, err := s.SignPayload(payload)
	return sig, err
}

// SignPayload 同时返回规范化字节与签名，调用方应原样发送这份字节
func (s *Signer) SignPayload(payload map[string]any) ([]byte, string, error) {
	if s == nil || s.key == nil {
		return nil, "", ErrKeyUnavailable
	}
	body, err := Canonicalize(payload)
	if err != nil {
		return nil, "", err
	}
	sig, err := s.SignBytes(body)
	if err != nil {
		return nil, "", err
	}
	return body, sig, nil
}

// SignBytes 对已规范化的字节做 RSA-PKCS1v15 / SHA-256 签名
func (s *Signer) SignBytes(message []byte) (string, error) {
	if s == nil || s.key == nil {
		return "", ErrKeyUnavailable
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", &SigningError{Op: "sign", Err: err}
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
