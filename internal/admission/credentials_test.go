package admission

import (
	"encoding/base64"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basic(s string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s))
}

func TestParseBasic(t *testing.T) {
	c, err := ParseBasic(basic("admin:K7$mP9!xL2qJ4"))
	require.NoError(t, err)
	assert.Equal(t, Credential{Username: "admin", Password: "K7$mP9!xL2qJ4"}, c)

	c, err = ParseBasic(basic("admin:pa:ss"))
	require.NoError(t, err)
	assert.Equal(t, "pa:ss", c.Password)

	c, err = ParseBasic("basic " + base64.StdEncoding.EncodeToString([]byte("a:b")))
	require.NoError(t, err, "scheme is case-insensitive")
	assert.Equal(t, "a", c.Username)
}

func TestParseBasic_Malformed(t *testing.T) {
	for name, header := range map[string]string{
		"bearer":        "Bearer abc",
		"scheme only":   "Basic",
		"bad base64":    "Basic !!!",
		"no separator":  basic("adminpassword"),
		"invalid utf-8": "Basic " + base64.StdEncoding.EncodeToString([]byte{'a', ':', 0xff}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBasic(header)
			assert.ErrorIs(t, err, ErrMalformedCredential)
		})
	}
}

func TestCredential_HeaderRoundTrip(t *testing.T) {
	c := Credential{Username: "admin", Password: "secret"}
	got, err := ParseBasic(c.Header())
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestPlainVerifier(t *testing.T) {
	for _, constantTime := range []bool{false, true} {
		v := PlainVerifier{Username: "admin", Password: "secret", ConstantTime: constantTime}

		ok, err := v.Verify(Credential{Username: "admin", Password: "secret"})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _ = v.Verify(Credential{Username: "admin", Password: "Secret"})
		assert.False(t, ok)

		ok, _ = v.Verify(Credential{Username: "root", Password: "secret"})
		assert.False(t, ok)
	}
}

func TestHashVerifier(t *testing.T) {
	hash, err := argon2id.CreateHash("secret", &argon2id.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)
	v := HashVerifier{Username: "admin", Hash: hash}

	ok, err := v.Verify(Credential{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify(Credential{Username: "admin", Password: "wrong"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.Verify(Credential{Username: "other", Password: "secret"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HashVerifier{Username: "admin", Hash: "not-a-hash"}.Verify(Credential{Username: "admin"})
	assert.Error(t, err)
}
