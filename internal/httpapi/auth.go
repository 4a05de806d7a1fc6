package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// StoreActor is the authenticated tenant scope extracted from a token.
type StoreActor struct {
	StoreID string
	Owner   bool
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
}

type storeClaims struct {
	jwtlib.RegisteredClaims
	StoreID string `json:"store_id"`
	Owner   bool   `json:"owner,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * 24 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// IssueStoreToken signs a token scoped to one store. Owner tokens are
// issued on store creation; join tokens are plain members.
func (a *AuthManager) IssueStoreToken(storeID string, owner bool) (string, error) {
	now := time.Now().UTC()
	claims := storeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   storeID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.tokenTTL)),
			Issuer:    "enjoygifts",
		},
		StoreID: storeID,
		Owner:   owner,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) ParseToken(tokenStr string) (StoreActor, error) {
	claims := &storeClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return StoreActor{}, errors.New("invalid or expired token")
	}
	if claims.StoreID == "" {
		return StoreActor{}, errors.New("invalid token scope")
	}
	return StoreActor{StoreID: claims.StoreID, Owner: claims.Owner}, nil
}

// HashPIN bcrypt-hashes an admin PIN for storage. An empty PIN disables
// the admin check for that store.
func HashPIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return "", nil
	}
	if len(pin) < 4 {
		return "", errors.New("admin PIN must be at least 4 digits")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPIN(hash string, pin string) bool {
	pin = strings.TrimSpace(pin)
	if hash == "" || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
