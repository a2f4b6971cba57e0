package admission

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
)

// ErrMalformedCredential is returned when an Authorization header cannot be
// decoded into a username and password.
var ErrMalformedCredential = errors.New("malformed credential")

const basicScheme = "Basic "

// Credential is a username/password pair presented by a client.
type Credential struct {
	Username string
	Password string
}

// ParseBasic decodes an RFC 7617 Basic Authorization header value.
// The password may contain colons; the username may not.
func ParseBasic(header string) (Credential, error) {
	if len(header) < len(basicScheme) || !strings.EqualFold(header[:len(basicScheme)], basicScheme) {
		return Credential{}, fmt.Errorf("%w: unsupported scheme", ErrMalformedCredential)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(basicScheme):]))
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	if !utf8.Valid(raw) {
		return Credential{}, fmt.Errorf("%w: not utf-8", ErrMalformedCredential)
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Credential{}, fmt.Errorf("%w: missing separator", ErrMalformedCredential)
	}
	return Credential{Username: user, Password: pass}, nil
}

// Header encodes c as a Basic Authorization header value.
func (c Credential) Header() string {
	return basicScheme + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}

// Verifier checks a decoded credential against the expected one.
type Verifier interface {
	Verify(c Credential) (bool, error)
}

// PlainVerifier compares against a plaintext pair. By default it uses plain
// string equality; ConstantTime switches to crypto/subtle.
type PlainVerifier struct {
	Username     string
	Password     string
	ConstantTime bool
}

func (v PlainVerifier) Verify(c Credential) (bool, error) {
	if v.ConstantTime {
		userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(v.Username))
		passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(v.Password))
		return userOK&passOK == 1, nil
	}
	return c.Username == v.Username && c.Password == v.Password, nil
}

// HashVerifier compares the password against an argon2id PHC hash.
type HashVerifier struct {
	Username string
	Hash     string
}

func (v HashVerifier) Verify(c Credential) (bool, error) {
	if c.Username != v.Username {
		return false, nil
	}
	ok, err := argon2id.ComparePasswordAndHash(c.Password, v.Hash)
	if err != nil {
		return false, fmt.Errorf("comparing password hash: %w", err)
	}
	return ok, nil
}

// HashPassword returns an argon2id hash suitable for HashVerifier.
func HashPassword(password string) (string, error) {
	return argon2id.CreateHash(password, argon2id.DefaultParams)
}
