// Package auth decides whether a request may use a route that
// requires an API key. The dispatcher consults it as a pure yes/no
// contract; everything about how keys are carried and stored lives
// here.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
)

// Hash algorithm constants.
const (
	HashAlgSHA256    = "sha256"
	HashAlgSHA512    = "sha512"
	HashAlgBcrypt    = "bcrypt"
	HashAlgPlaintext = "plaintext"
)

// Validator decides whether a request may use a route.
type Validator interface {
	// Check reports whether the request carries valid credentials
	// for the route. A false result with a nil error is an ordinary
	// denial; errors are reserved for validator failures.
	Check(ctx context.Context, req *Request, def *route.RouteDefinition) (bool, error)
}

// Options configures the static key validator.
type Options struct {
	// Header is the header carrying the API key. Empty disables
	// header extraction unless QueryParam is also empty, in which
	// case both fall back to their defaults.
	Header string
	// QueryParam is the query parameter carrying the API key.
	QueryParam string
	// HashAlgorithm is one of sha256, sha512, bcrypt, plaintext.
	HashAlgorithm string
	// Keys is the static key set. Entries are compared according to
	// HashAlgorithm and may hold either the hashed or the raw key
	// (bcrypt entries must be bcrypt hashes).
	Keys []string
}

// KeyValidator validates requests against a static API key set.
type KeyValidator struct {
	extractor Extractor
	algorithm string
	keys      []string
	logger    observability.Logger
}

// NewKeyValidator creates a validator over a static key set.
func NewKeyValidator(opts Options, logger observability.Logger) (*KeyValidator, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	algorithm := opts.HashAlgorithm
	if algorithm == "" {
		algorithm = HashAlgSHA256
	}
	switch algorithm {
	case HashAlgSHA256, HashAlgSHA512, HashAlgBcrypt, HashAlgPlaintext:
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}

	if opts.Header == "" && opts.QueryParam == "" {
		opts.Header = "X-API-Key"
		opts.QueryParam = "api_key"
	}

	var extractors []Extractor
	if opts.Header != "" {
		extractors = append(extractors, NewHeaderExtractor(opts.Header))
	}
	if opts.QueryParam != "" {
		extractors = append(extractors, NewQueryExtractor(opts.QueryParam))
	}

	if algorithm == HashAlgPlaintext {
		logger.Warn("using plaintext API key comparison - not recommended for production")
	}
	if len(opts.Keys) == 0 {
		logger.Warn("no API keys configured, every key-protected route will deny")
	}

	return &KeyValidator{
		extractor: NewCompositeExtractor(extractors...),
		algorithm: algorithm,
		keys:      opts.Keys,
		logger:    logger,
	}, nil
}

// Check reports whether the request carries a valid API key.
func (v *KeyValidator) Check(ctx context.Context, req *Request, def *route.RouteDefinition) (bool, error) {
	key, err := v.extractor.Extract(req)
	if err != nil {
		v.logger.Debug("API key extraction failed",
			observability.Error(err))
		return false, nil
	}

	for _, stored := range v.keys {
		if v.matches(key, stored) {
			v.logger.Debug("API key validated")
			return true, nil
		}
	}

	v.logger.Debug("API key rejected")
	return false, nil
}

// matches compares the provided key against one stored entry using
// the configured algorithm. Stored entries may hold either the hash
// or the raw key; both sides are hashed before comparing so neither
// form short-circuits.
func (v *KeyValidator) matches(provided, stored string) bool {
	switch v.algorithm {
	case HashAlgSHA256:
		providedHash := sha256Hex(provided)
		if subtle.ConstantTimeCompare([]byte(providedHash), []byte(stored)) == 1 {
			return true
		}
		return subtle.ConstantTimeCompare([]byte(providedHash), []byte(sha256Hex(stored))) == 1

	case HashAlgSHA512:
		providedHash := sha512Hex(provided)
		if subtle.ConstantTimeCompare([]byte(providedHash), []byte(stored)) == 1 {
			return true
		}
		return subtle.ConstantTimeCompare([]byte(providedHash), []byte(sha512Hex(stored))) == 1

	case HashAlgBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(provided)) == nil

	case HashAlgPlaintext:
		return subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) == 1

	default:
		return false
	}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha512Hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashKey hashes an API key using the given algorithm, producing the
// form stored in configuration.
func HashKey(key, algorithm string) (string, error) {
	switch algorithm {
	case HashAlgSHA256:
		return sha256Hex(key), nil
	case HashAlgSHA512:
		return sha512Hex(key), nil
	case HashAlgBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	case HashAlgPlaintext:
		return key, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// Ensure KeyValidator implements Validator.
var _ Validator = (*KeyValidator)(nil)
