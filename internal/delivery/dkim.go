package delivery

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/emersion/go-msgauth/dkim"
)

var dkimHeaderKeys = []string{
	"from",
	"to",
	"subject",
	"date",
	"message-id",
}

// DKIMSigner adds a DKIM-Signature header to outgoing messages.
type DKIMSigner struct {
	domain   string
	selector string
	key      crypto.Signer
}

func NewDKIMSigner(key crypto.Signer, domain, selector string) *DKIMSigner {
	if selector == "" {
		selector = "mail"
	}

	return &DKIMSigner{
		domain:   domain,
		selector: selector,
		key:      key,
	}
}

// LoadDKIMSigner reads a PEM encoded PKCS#1 or PKCS#8 private key from path.
func LoadDKIMSigner(path, domain, selector string) (*DKIMSigner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM data in %s", ErrInvalidDKIMKey, path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return NewDKIMSigner(key, domain, selector), nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDKIMKey, err)
	}
	key, ok := parsed.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidDKIMKey, parsed)
	}

	return NewDKIMSigner(key, domain, selector), nil
}

// Sign returns raw, a CRLF terminated message, with the signature prepended.
func (s *DKIMSigner) Sign(raw []byte) ([]byte, error) {
	opts := &dkim.SignOptions{
		Domain:     s.domain,
		Selector:   s.selector,
		Signer:     s.key,
		HeaderKeys: dkimHeaderKeys,
	}

	var signed bytes.Buffer
	if err := dkim.Sign(&signed, bytes.NewReader(raw), opts); err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	return signed.Bytes(), nil
}
