package utils // package utils provides helper functions for token creation and password hashing

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// TokenTTL is the lifetime of an access token.  Both account kinds use the
// same single short-lived bearer token; there is no refresh grant.
const TokenTTL = time.Hour

// ErrInvalidToken is returned when a token fails parsing, signature
// verification, expiry, or carries no usable id claim.
var ErrInvalidToken = errors.New("invalid token")

// SignToken builds and signs an HS256 JWT carrying an account id.  The
// subject may be a user or a caregiver id; the token itself does not say
// which, callers resolve the id against the collection they serve.
func SignToken(secret, accountID string) (string, error) {
    now := time.Now().UTC()
    claims := jwt.MapClaims{
        "id":  accountID,
        "exp": now.Add(TokenTTL).Unix(),
        "iat": now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return t.SignedString([]byte(secret))
}

// VerifyToken parses and validates a signed token and returns the account
// id it carries.  Any failure collapses into ErrInvalidToken; callers do
// not need to distinguish a bad signature from an expired token.
func VerifyToken(secret, raw string) (string, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Reject tokens signed with anything but HMAC.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return "", ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return "", ErrInvalidToken
    }
    id, ok := claims["id"].(string)
    if !ok || id == "" {
        return "", ErrInvalidToken
    }
    return id, nil
}
