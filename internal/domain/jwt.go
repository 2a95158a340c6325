package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// LedgerClaims carries the authenticated caller identity. Authorization
// (is this identity the administrator?) is ledger state, not a token
// claim, so the token only identifies the caller.
type LedgerClaims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}
