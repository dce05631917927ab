// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoIdentity is returned for tokens without a usable subject.
var ErrNoIdentity = errors.New("token carries no identity")

var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long issued tokens stay valid; zero means they never expire.
	tokenTTL time.Duration
)

// parseTokenTTL reads TOKEN_EXPIRE_TIME ("never", "0", "" or a Go duration).
func parseTokenTTL(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("token expire time must not be negative: %s", s)
	}
	return d, nil
}

// Init generates a fresh ed25519 key pair. Tokens do not survive a restart.
func Init() error {
	ttl, err := parseTokenTTL(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return err
	}
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey, tokenTTL = pub, priv, ttl
	return nil
}

// InitFromPath reads raw ed25519 keys from disk.
func InitFromPath(privatePath, publicPath string) error {
	ttl, err := parseTokenTTL(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return err
	}
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return errors.New("key files are not raw ed25519 keys")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenTTL = ttl
	return nil
}

// CreateJWT signs a token whose subject is userID.
func CreateJWT(userID string) (string, error) {
	if privateKey == nil {
		return "", errors.New("auth not initialised")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
	}
	if tokenTTL > 0 {
		claims["exp"] = now.Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns its subject.
func AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	sub, err := t.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrNoIdentity
	}
	return sub, nil
}

// Identity verifies a token and parses its subject as the caller's identity.
func Identity(tokenString string) (uuid.UUID, error) {
	sub, err := AuthenticateJWT(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, ErrNoIdentity
	}
	return id, nil
}

// NewGuest issues a token for a fresh anonymous identity.
func NewGuest() (uuid.UUID, string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("failed to generate guest id: %w", err)
	}
	token, err := CreateJWT(id.String())
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, token, nil
}
