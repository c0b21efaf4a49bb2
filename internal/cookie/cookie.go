// Package cookie seals cookie values with XChaCha20-Poly1305 so the browser
// can hold OAuth tokens without being able to read or alter them.
package cookie

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var ErrInvalid = errors.New("invalid cookie value")

// Codec seals values bound to the cookie name they were issued under.
type Codec struct {
	key    []byte
	secure bool
}

// NewCodec derives the sealing key from secret with HKDF-SHA256.
func NewCodec(secret string, secure bool) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("cookie secret is empty")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("overlays cookie sealing v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving cookie key: %w", err)
	}
	return &Codec{key: key, secure: secure}, nil
}

func (c *Codec) Seal(name, value string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(name))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Open(name, sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrInvalid
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalid
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(name))
	if err != nil {
		return "", ErrInvalid
	}
	return string(plain), nil
}

// Set writes a sealed, HttpOnly, SameSite=Lax cookie.
func (c *Codec) Set(w http.ResponseWriter, name, value string, maxAge time.Duration) error {
	sealed, err := c.Seal(name, value)
	if err != nil {
		return fmt.Errorf("sealing %s: %w", name, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sealed,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get returns the opened value of the named cookie. A missing cookie is
// http.ErrNoCookie; a tampered one is ErrInvalid.
func (c *Codec) Get(r *http.Request, name string) (string, error) {
	ck, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Open(name, ck.Value)
}

func (c *Codec) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
