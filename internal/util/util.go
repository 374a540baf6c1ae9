// Package util provides content hashing and small path helpers shared by the stores.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// CleanAssetPath normalizes a server-relative asset path to a rooted, slash
// separated path with no dot segments.
func CleanAssetPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

// SplitAssetPath splits a server-relative asset path into its folder and file name.
func SplitAssetPath(p string) (dir, name string) {
	p = CleanAssetPath(p)
	dir, name = path.Split(p)
	return strings.TrimSuffix(dir, "/"), name
}
