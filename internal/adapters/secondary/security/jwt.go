package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// UserClaims reprend les claims émis par le service d'identité.
// Username sert à créer le compte local à la première visite.
type UserClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier ne détient que la clé PUBLIQUE : ce service ne signe jamais de token.
type JWTVerifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

func NewJWTVerifier(publicKeyPEM []byte, issuer string) (*JWTVerifier, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return &JWTVerifier{publicKey: pubKey, issuer: issuer}, nil
}

// LoadJWTVerifier lit la clé depuis JWT_PUBLIC_KEY_PATH.
func LoadJWTVerifier(path, issuer string) (*JWTVerifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return NewJWTVerifier(pem, issuer)
}

var _ ports.TokenVerifier = (*JWTVerifier)(nil)

// Validate vérifie la signature et retourne l'UserID (Subject) et le username
func (v *JWTVerifier) Validate(tokenString string) (ports.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Empêche les attaques où l'attaquant force l'algo à "None" ou "HS256"
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return ports.Identity{}, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return ports.Identity{}, errors.New("invalid token claims")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return ports.Identity{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return ports.Identity{UserID: userID, Username: strings.TrimSpace(claims.Username)}, nil
}

var ErrAuthDisabled = errors.New("token verification disabled: no public key configured")

// DisabledVerifier refuse tous les tokens : en local sans clé, tout le monde est anonyme.
type DisabledVerifier struct{}

var _ ports.TokenVerifier = DisabledVerifier{}

func (DisabledVerifier) Validate(string) (ports.Identity, error) {
	return ports.Identity{}, ErrAuthDisabled
}
