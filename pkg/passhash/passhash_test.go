package passhash_test

import (
	"strings"
	"testing"

	"github.com/wardenauth/warden/pkg/passhash"
	"github.com/stretchr/testify/require"
)

// testParams keeps the KDF cheap enough for CI while exercising the same
// code paths as the production parameters.
func testParams() passhash.Params {
	return passhash.Params{
		Memory:      16 * 1024,
		Iterations:  1,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	h := passhash.New(testParams())

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, h.Verify("correct horse battery staple", hash))
	require.ErrorIs(t, h.Verify("correct horse battery stapel", hash), passhash.ErrMismatch)
}

func TestHashIsSaltedPerCall(t *testing.T) {
	t.Parallel()

	h := passhash.New(testParams())

	first, err := h.Hash("same-password")
	require.NoError(t, err)
	second, err := h.Hash("same-password")
	require.NoError(t, err)

	require.NotEqual(t, first, second, "fresh salt must change the output")

	// Both still verify.
	require.NoError(t, h.Verify("same-password", first))
	require.NoError(t, h.Verify("same-password", second))
}

func TestEmptyPasswordRejected(t *testing.T) {
	t.Parallel()

	h := passhash.New(testParams())

	_, err := h.Hash("")
	require.ErrorIs(t, err, passhash.ErrEmptyPassword)

	hash, err := h.Hash("not-empty")
	require.NoError(t, err)
	require.ErrorIs(t, h.Verify("", hash), passhash.ErrEmptyPassword)
}

func TestVerifyMalformedHash(t *testing.T) {
	t.Parallel()

	h := passhash.New(testParams())

	cases := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"garbage", "not-a-hash"},
		{"wrong algorithm", "$bcrypt$v=19$m=16,t=1,p=1$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=18$m=16,t=1,p=1$c2FsdA$aGFzaA"},
		{"bad parameters", "$argon2id$v=19$m=x,t=y,p=z$c2FsdA$aGFzaA"},
		{"bad salt encoding", "$argon2id$v=19$m=16,t=1,p=1$!!!$aGFzaA"},
		{"bad key encoding", "$argon2id$v=19$m=16,t=1,p=1$c2FsdA$!!!"},
		{"missing parts", "$argon2id$v=19$m=16,t=1,p=1$c2FsdA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.Verify("whatever", tc.hash)
			require.ErrorIs(t, err, passhash.ErrMalformedHash)
		})
	}
}

func TestVerifyUsesEncodedParameters(t *testing.T) {
	t.Parallel()

	// Hash with one parameter set, verify with a hasher configured
	// differently. The PHC string carries the derivation parameters.
	hash, err := passhash.New(testParams()).Hash("portable")
	require.NoError(t, err)

	other := passhash.New(passhash.Params{
		Memory:      8 * 1024,
		Iterations:  3,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, other.Verify("portable", hash))
}
