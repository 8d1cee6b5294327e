// Package assets locates and reads model assets (tokenizer.json, chat
// templates) from the local filesystem or object storage URLs such as s3://.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	_ "github.com/viant/afsc/s3"
)

var fileSystem = afs.New()

// maxAssetBytes bounds a single asset read.
const maxAssetBytes = 512 << 20

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/minimind
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// IsRemote reports whether location has a URL scheme (s3://, gs://, file://).
func IsRemote(location string) bool {
	return strings.Contains(location, "://")
}

// Resolve returns the location of name relative to dir. Absolute paths and
// URLs are returned as is. dir may itself be a URL; its scheme separator is
// preserved.
func Resolve(dir, name string) (string, error) {
	if name == "" {
		return "", errors.New("asset name is empty")
	}
	name, err := ExpandHome(name)
	if err != nil {
		return "", err
	}
	if IsRemote(name) || filepath.IsAbs(name) || dir == "" {
		return name, nil
	}
	if IsRemote(dir) {
		return strings.TrimSuffix(dir, "/") + "/" + strings.TrimPrefix(filepath.ToSlash(name), "/"), nil
	}
	dir, err = ExpandHome(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Read returns the full contents of the asset at location.
func Read(ctx context.Context, location string) (data []byte, err error) {
	location, err = absolute(location)
	if err != nil {
		return nil, err
	}
	rc, err := fileSystem.OpenURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("open asset %s: %w", location, err)
	}
	defer func(c io.Closer) {
		err = errors.Join(err, c.Close())
	}(rc)

	buf := &bytes.Buffer{}
	n, err := io.Copy(buf, io.LimitReader(rc, maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", location, err)
	}
	if n > maxAssetBytes {
		return nil, fmt.Errorf("asset %s exceeds %d bytes", location, maxAssetBytes)
	}
	return buf.Bytes(), nil
}

// Exists reports whether the asset at location exists.
func Exists(ctx context.Context, location string) (bool, error) {
	location, err := absolute(location)
	if err != nil {
		return false, err
	}
	return fileSystem.Exists(ctx, location)
}

// absolute anchors relative local paths at the working directory.
func absolute(location string) (string, error) {
	if IsRemote(location) || filepath.IsAbs(location) {
		return location, nil
	}
	return filepath.Abs(location)
}
