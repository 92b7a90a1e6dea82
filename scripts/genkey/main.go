// genkey writes the Ed25519 key pair wyrmgate signs session tokens with.
//
// Usage (run from the repo root):
//
//	go run ./scripts/genkey [-dir data] [-force]
//
// Then point the server and `wyrmgate token` at the same pair:
//
//	WYRMGATE_JWT_PRIVATE_KEY=data/jwt_private.pem
//	WYRMGATE_JWT_PUBLIC_KEY=data/jwt_public.pem
//
// Without a pair the server signs with ephemeral keys and every token dies
// with the process.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

func main() {
	dir := flag.String("dir", "data", "directory to write the key pair into")
	force := flag.Bool("force", false, "overwrite an existing pair (invalidates live tokens)")
	flag.Parse()

	if err := run(*dir, *force); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string, force bool) error {
	privPath := filepath.Join(dir, "jwt_private.pem")
	pubPath := filepath.Join(dir, "jwt_public.pem")

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if !force {
		for _, path := range []string{privPath, pubPath} {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, pass -force to rotate", path)
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return fmt.Errorf("marshal public key: %w", err)
	}

	if err := writePEM(privPath, "PRIVATE KEY", privDER); err != nil {
		return err
	}
	if err := writePEM(pubPath, "PUBLIC KEY", pubDER); err != nil {
		return err
	}

	fmt.Printf("wrote %s\nwrote %s\n", privPath, pubPath)
	return nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
