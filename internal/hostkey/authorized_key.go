package hostkey

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Canonicalize parses an authorized_keys-format line and re-renders it
// in the same "type base64" form, stripping any comment/options so
// that two textually-different but semantically-identical encodings of
// the same key compare equal in storage.
func Canonicalize(authorizedKeyLine string) (string, error) {
	pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(authorizedKeyLine))
	if err != nil {
		return "", fmt.Errorf("parse authorized key: %w", err)
	}
	return strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub))), nil
}
