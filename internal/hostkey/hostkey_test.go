package hostkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestLoadOrGenerateCreatesThenReuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_key")

	first, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := LoadOrGenerate(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if string(first.PublicKey().Marshal()) != string(second.PublicKey().Marshal()) {
		t.Fatal("reloaded host key does not match generated key")
	}
}

func TestCanonicalizeNormalizesAuthorizedKeyLine(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("NewPublicKey: %v", err)
	}
	bare := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	withComment := bare + " someone@example.com\n"

	canon, err := Canonicalize(withComment)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	canon2, err := Canonicalize(bare)
	if err != nil {
		t.Fatalf("Canonicalize (no comment): %v", err)
	}
	if canon != canon2 {
		t.Fatalf("canonicalization not comment-invariant: %q != %q", canon, canon2)
	}
}
