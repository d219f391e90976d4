package sshserver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ErrNoAuthorizedKeys reports an authorized_keys file without usable keys.
var ErrNoAuthorizedKeys = errors.New("no authorized keys")

// LoadAuthorizedKeys parses an OpenSSH authorized_keys file.
func LoadAuthorizedKeys(path string) ([]ssh.PublicKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("authorized keys path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	return ParseAuthorizedKeys(data)
}

// ParseAuthorizedKeys parses authorized_keys content, skipping blank lines and
// comments.
func ParseAuthorizedKeys(data []byte) ([]ssh.PublicKey, error) {
	var keys []ssh.PublicKey
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("parse authorized keys line %d: %w", i+1, err)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, ErrNoAuthorizedKeys
	}
	return keys, nil
}

func keyAuthorized(keys []ssh.PublicKey, key ssh.PublicKey) bool {
	if key == nil {
		return false
	}
	marshaled := key.Marshal()
	for _, candidate := range keys {
		if bytes.Equal(candidate.Marshal(), marshaled) {
			return true
		}
	}
	return false
}
