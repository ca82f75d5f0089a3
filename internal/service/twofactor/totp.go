package twofactor

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	secretBytes = 20

	// Standard TOTP parameters: SHA-1, 6 digits, 30 second step
	Digits = 6
	Period = 30

	// SkewSteps is the accepted clock drift, in time steps either side of now
	SkewSteps = 1
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Engine generates TOTP secrets and verifies submitted codes
// It holds no persisted state: the caller stores the secret on the user
type Engine struct {
	issuer string
}

func NewEngine(issuer string) *Engine {
	return &Engine{issuer: issuer}
}

// GenerateSecret returns a fresh cryptographically random base32 secret
func (e *Engine) GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("error while generating totp secret. Err: %w", err)
	}

	return b32.EncodeToString(raw), nil
}

// ProvisioningURI builds the standard otpauth://totp/... URI for the account
func (e *Engine) ProvisioningURI(secret string, account string) string {
	label := url.PathEscape(e.issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", e.issuer)
	v.Set("period", strconv.Itoa(Period))
	v.Set("digits", strconv.Itoa(Digits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode checks the code against the secret within the skew window
// A malformed code is simply not valid; a malformed secret is a server fault
func (e *Engine) VerifyCode(secret string, code string) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != Digits || !numeric(trimmed) {
		return false, nil
	}

	raw, err := b32.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return false, fmt.Errorf("malformed totp secret: %w", err)
	}

	baseCounter := time.Now().Unix() / Period
	for step := -SkewSteps; step <= SkewSteps; step++ {
		counter := baseCounter + int64(step)
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotpCode(raw, counter)), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// hotpCode implements RFC 4226 dynamic truncation over HMAC-SHA1
func hotpCode(secret []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < Digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", Digits, bin%mod)
}

func numeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
