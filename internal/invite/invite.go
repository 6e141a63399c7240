// Package invite generates team invite codes, share links and QR codes.
package invite

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength = 6
	qrSize     = 256
)

// Invite bundles everything a team creator hands out to other players.
type Invite struct {
	Code      string
	JoinURL   string
	ShareURL  string
	QRDataURL string
}

// Generator builds invites rooted at a public frontend URL.
type Generator struct {
	baseURL string
}

func NewGenerator(baseURL string) *Generator {
	return &Generator{baseURL: strings.TrimRight(baseURL, "/")}
}

// New creates an invite with a fresh random code.
func (g *Generator) New() (Invite, error) {
	code, err := NewCode()
	if err != nil {
		return Invite{}, err
	}
	return g.ForCode(code)
}

// ForCode rebuilds the links and QR code of an existing code.
func (g *Generator) ForCode(code string) (Invite, error) {
	inv := Invite{
		Code:     code,
		JoinURL:  fmt.Sprintf("%s/ReadQACode/%s", g.baseURL, code),
		ShareURL: fmt.Sprintf("%s/%s?feature=shared", g.baseURL, code),
	}
	png, err := qrcode.Encode(inv.JoinURL, qrcode.Medium, qrSize)
	if err != nil {
		return Invite{}, fmt.Errorf("encoding qr code: %w", err)
	}
	inv.QRDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return inv, nil
}

// NewCode returns CodeLength random characters from A-Z and 0-9.
func NewCode() (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(CodeLength)
	for range CodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generating invite code: %w", err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// ValidCode reports whether code has the shape NewCode produces.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
