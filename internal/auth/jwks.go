package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/doyensec/safeurl"
)

// maxJWKSResponseSize はJWKSレスポンスの最大サイズ。通常のキーセットは数KBに収まる。
const maxJWKSResponseSize = 1 << 20 // 1MiB

// jwksDocument はIdPのJWKSエンドポイントのレスポンス。
type jwksDocument struct {
	Keys []jwksKey `json:"keys"`
}

// jwksKey はJWKS内の1つの公開鍵。RSA署名鍵のみを対象とする。
type jwksKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSCache はIdPのJWKSエンドポイントから取得した公開鍵をTTL付きでキャッシュする。
// キャッシュにないkidが要求された場合は再取得する（IdP側の鍵ローテーション対応）。
//
// 取得にはsafeurlのHTTPクライアントを使用する。JWKS URLは設定値だが、
// プライベートIPやメタデータIPへの到達をDialerレベルでブロックし、
// 設定ミスや悪意ある設定値によるSSRFを防ぐ。
type JWKSCache struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSCache はJWKSCacheを生成する。
func NewJWKSCache(jwksURL string, ttl, fetchTimeout time.Duration) *JWKSCache {
	config := safeurl.GetConfigBuilder().
		SetTimeout(fetchTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return &JWKSCache{
		url:    jwksURL,
		ttl:    ttl,
		client: wrappedClient.Client,
		keys:   map[string]*rsa.PublicKey{},
	}
}

// SigningKey は指定kidのRSA公開鍵を返す。
// キャッシュが新鮮でkidが存在すればそれを返し、そうでなければJWKSを再取得する。
// 再取得後もkidが見つからない場合はエラーを返す
// （別のIdPが発行したトークンを受け取った場合など）。
func (c *JWKSCache) SigningKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	key, ok = c.keys[kid]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("signing key not found in JWKS: kid=%s", kid)
	}
	return key, nil
}

// refresh はJWKSエンドポイントから鍵一式を取得し、キャッシュを差し替える。
func (c *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("JWKS fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read JWKS response: %w", err)
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("failed to parse JWKS response: %w", err)
	}

	keys := map[string]*rsa.PublicKey{}
	for _, k := range doc.Keys {
		// RSA署名鍵以外（EC鍵、暗号化用途の鍵）は読み飛ばす
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			return fmt.Errorf("failed to parse JWKS key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	if len(keys) == 0 {
		return fmt.Errorf("JWKS contains no usable RSA signing keys")
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

// parseRSAKey はJWK形式のRSA公開鍵（base64url表現のn, e）をrsa.PublicKeyに変換する。
func parseRSAKey(k jwksKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 1 {
		return nil, fmt.Errorf("invalid exponent value: %d", e)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
