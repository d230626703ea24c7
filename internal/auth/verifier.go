// Package auth はBearerトークンの検証と、初回検証時のユーザー自動作成を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/tally/internal/model"
)

// Verifier はBearerトークン検証のインターフェース。
// 検証に成功した場合はIdPのsubjectを含むTokenIdentityを返す。
// 失敗した場合はmodel.ErrCodeInvalidCredentialのAPIErrorを返す。
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.TokenIdentity, error)
}

// KeyProvider はkidに対応する署名検証鍵の取得インターフェース。
// 本番実装はJWKSCache。テストでは静的な鍵を注入する。
type KeyProvider interface {
	SigningKey(ctx context.Context, kid string) (any, error)
}

// jwksKeyProvider はJWKSCacheをKeyProviderに適合させるアダプタ。
type jwksKeyProvider struct {
	cache *JWKSCache
}

// SigningKey は指定kidのRSA公開鍵を返す。
func (p *jwksKeyProvider) SigningKey(ctx context.Context, kid string) (any, error) {
	return p.cache.SigningKey(ctx, kid)
}

// NewJWKSKeyProvider はJWKSCacheをKeyProviderとして返す。
func NewJWKSKeyProvider(cache *JWKSCache) KeyProvider {
	return &jwksKeyProvider{cache: cache}
}

// OIDCVerifierConfig はOIDCVerifierの設定。
type OIDCVerifierConfig struct {
	Issuer   string
	Audience string // 空の場合はaudience検証をスキップする
	// ローカル開発用に失効検証のみを無効化する。本番では必ずfalseにすること。
	InsecureSkipExpiry bool
}

// tokenClaims はIdPが発行するアクセストークンのクレーム。
type tokenClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// OIDCVerifier は外部IdPのRS256署名トークンを検証するVerifier実装。
// 署名鍵はKeyProvider（通常はリモートJWKSのキャッシュ）から取得する。
type OIDCVerifier struct {
	keys   KeyProvider
	config OIDCVerifierConfig
}

// NewOIDCVerifier はOIDCVerifierを生成する。
func NewOIDCVerifier(keys KeyProvider, config OIDCVerifierConfig) *OIDCVerifier {
	if config.InsecureSkipExpiry {
		slog.Warn("token expiry verification is DISABLED; do not use this in production")
	}
	return &OIDCVerifier{keys: keys, config: config}
}

// Verify はBearerトークンを検証し、subjectを含むTokenIdentityを返す。
// 署名・発行者・失効時刻のいずれかが不正な場合、および署名鍵が取得できない場合は
// 詳細を区別せずInvalidCredentialを返す（攻撃者へのヒントを避けるため。
// 内部向けの原因はログに記録する）。
func (v *OIDCVerifier) Verify(ctx context.Context, tokenString string) (*model.TokenIdentity, error) {
	claims := &tokenClaims{}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(v.config.Issuer),
		jwt.WithIssuedAt(),
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}
	if v.config.InsecureSkipExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header has no kid")
		}
		return v.keys.SigningKey(ctx, kid)
	}, opts...)

	if err != nil {
		slog.Info("token verification failed", slog.String("reason", err.Error()))
		return nil, model.NewInvalidCredentialError()
	}
	if !parsed.Valid {
		return nil, model.NewInvalidCredentialError()
	}

	// 失効検証をスキップした場合もissuerの一致だけは確認する
	if v.config.InsecureSkipExpiry && claims.Issuer != v.config.Issuer {
		slog.Info("token issuer mismatch", slog.String("issuer", claims.Issuer))
		return nil, model.NewInvalidCredentialError()
	}

	if claims.Subject == "" {
		slog.Info("token has empty subject")
		return nil, model.NewInvalidCredentialError()
	}

	identity := &model.TokenIdentity{
		Subject:   claims.Subject,
		SessionID: claims.SessionID,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	} else {
		identity.ExpiresAt = time.Time{}
	}

	return identity, nil
}

// compile-time interface check
var _ Verifier = (*OIDCVerifier)(nil)
