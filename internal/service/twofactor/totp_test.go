package twofactor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 4226 appendix D test vectors, truncated to 6 digits
func Test_HotpCode(t *testing.T) {
	t.Parallel()

	secret := []byte("12345678901234567890")

	expected := map[int64]string{
		0: "755224",
		1: "287082",
		2: "359152",
		3: "969429",
		4: "338314",
		5: "254676",
		6: "287922",
		7: "162583",
		8: "399871",
		9: "520489",
	}

	for counter, code := range expected {
		assert.Equal(t, code, hotpCode(secret, counter), "counter %d", counter)
	}
}

func Test_GenerateSecret(t *testing.T) {
	t.Parallel()

	e := NewEngine("classhub")

	first, err := e.GenerateSecret()
	require.NoError(t, err)

	second, err := e.GenerateSecret()
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "secrets have to be random")

	raw, err := b32.DecodeString(first)
	require.NoError(t, err, "secret has to be valid base32 without padding")
	assert.Len(t, raw, secretBytes)
}

func Test_ProvisioningURI(t *testing.T) {
	t.Parallel()

	e := NewEngine("classhub")
	uri := e.ProvisioningURI("JBSWY3DPEHPK3PXP", "user@example.com")

	assert.True(t, strings.HasPrefix(uri, "otpauth://totp/classhub:user@example.com?"), "got: %s", uri)
	assert.Contains(t, uri, "secret=JBSWY3DPEHPK3PXP")
	assert.Contains(t, uri, "issuer=classhub")
	assert.Contains(t, uri, "digits=6")
	assert.Contains(t, uri, "period=30")
	assert.Contains(t, uri, "algorithm=SHA1")
}

func Test_VerifyCode(t *testing.T) {
	t.Parallel()

	e := NewEngine("classhub")

	secret, err := e.GenerateSecret()
	require.NoError(t, err)

	raw, err := b32.DecodeString(secret)
	require.NoError(t, err)

	counter := time.Now().Unix() / Period
	current := hotpCode(raw, counter)

	t.Run("accepts current code", func(t *testing.T) {
		ok, err := e.VerifyCode(secret, current)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("accepts code with surrounding whitespace", func(t *testing.T) {
		ok, err := e.VerifyCode(secret, " "+current+"\n")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("accepts codes inside the drift window", func(t *testing.T) {
		for _, step := range []int64{-1, 1} {
			ok, err := e.VerifyCode(secret, hotpCode(raw, counter+step))
			require.NoError(t, err)
			assert.True(t, ok, "code for step %d has to be accepted", step)
		}
	})

	t.Run("rejects code outside the drift window", func(t *testing.T) {
		stale := hotpCode(raw, counter-10)

		ok, err := e.VerifyCode(secret, stale)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects wrong code", func(t *testing.T) {
		// Flip one digit of the valid code
		flipped := string((current[0]-'0'+1)%10+'0') + current[1:]

		ok, err := e.VerifyCode(secret, flipped)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects malformed codes without error", func(t *testing.T) {
		for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
			ok, err := e.VerifyCode(secret, code)
			require.NoError(t, err, "malformed code %q is not a server fault", code)
			assert.False(t, ok)
		}
	})

	t.Run("malformed secret is an error", func(t *testing.T) {
		_, err := e.VerifyCode("not-base32!!", current)
		require.Error(t, err)
	})
}

func Test_VerifyCodeAgainstDifferentSecret(t *testing.T) {
	t.Parallel()

	e := NewEngine("classhub")

	first, err := e.GenerateSecret()
	require.NoError(t, err)
	second, err := e.GenerateSecret()
	require.NoError(t, err)

	raw, err := b32.DecodeString(first)
	require.NoError(t, err)
	code := hotpCode(raw, time.Now().Unix()/Period)

	ok, err := e.VerifyCode(second, code)
	require.NoError(t, err)
	assert.False(t, ok, "code for one secret must not verify against another")
}
