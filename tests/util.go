package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var signingKey = []byte("showcase-test-key")

// PNG returns a w×h PNG image.
func PNG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("PNG() failed: %v", err)
	}
	return buf.Bytes()
}

// PDF returns a minimal PDF document.
func PDF() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
}

// WriteFile writes data under dir and returns its path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	fp := filepath.Join(dir, name)
	if err := os.WriteFile(fp, data, 0o600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return fp
}

// Token returns a signed access token for userID, as the API would issue it.
func Token(t *testing.T, userID string) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	return tok
}
