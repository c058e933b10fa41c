package tracking

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	signer := NewSigner("s3cret", "https://billing.example.com/")

	sum := sha256.Sum256([]byte("42:s3cret"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:16], signer.TrackingToken(42))

	sum = sha256.Sum256([]byte("verification:42:s3cret"))
	assert.Equal(t, hex.EncodeToString(sum[:])[:16], signer.VerificationToken(42))

	assert.NotEqual(t, signer.TrackingToken(42), signer.VerificationToken(42))
	assert.Len(t, signer.TrackingToken(42), 16)
}

func TestVerify(t *testing.T) {
	signer := NewSigner("s3cret", "")

	assert.True(t, signer.VerifyTracking(7, signer.TrackingToken(7)))
	assert.False(t, signer.VerifyTracking(8, signer.TrackingToken(7)))
	assert.False(t, signer.VerifyTracking(7, signer.VerificationToken(7)))
	assert.True(t, signer.VerifyView(7, signer.VerificationToken(7)))
	assert.False(t, signer.VerifyView(7, ""))

	other := NewSigner("different", "")
	assert.False(t, other.VerifyTracking(7, signer.TrackingToken(7)))
}

func TestURLs(t *testing.T) {
	signer := NewSigner("s3cret", "https://billing.example.com/")

	assert.Equal(t, "https://billing.example.com/track/3/"+signer.TrackingToken(3), signer.PixelURL(3))
	assert.Equal(t, "https://billing.example.com/view/3/"+signer.VerificationToken(3), signer.ViewURL(3))
}

func TestPixelIsPNG(t *testing.T) {
	assert.True(t, bytes.HasPrefix(Pixel, []byte("\x89PNG\r\n\x1a\n")))
}
