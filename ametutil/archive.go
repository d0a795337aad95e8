/*
Copyright © 2018 the AMET authors.
This file is part of AMET.

AMET is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

AMET is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with AMET.  If not, see <http://www.gnu.org/licenses/>.
*/

package ametutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blue-action/amet"
	"github.com/blue-action/amet/internal/hash"
	"gocloud.dev/blob"
)

// ManifestName is the name of the manifest written with each archived leg.
const ManifestName = "MANIFEST"

// Archiver copies the raw output of legs to an archive bucket.
type Archiver struct {
	bucket *blob.Bucket
	prefix string
}

// NewArchiver opens the archive destination dest, which is either a
// local directory or a blob storage location.
func NewArchiver(ctx context.Context, dest string) (*Archiver, error) {
	bucketName, prefix := dest, ""
	if IsBlob(dest) {
		var err error
		if bucketName, prefix, err = splitBlob(dest); err != nil {
			return nil, fmt.Errorf("ametutil: archive %s: %v", dest, err)
		}
	}
	b, err := OpenBucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("ametutil: opening archive %s: %v", dest, err)
	}
	return &Archiver{bucket: b, prefix: prefix}, nil
}

// Key returns the key of file name of a leg in the archive bucket.
func (a *Archiver) Key(exp string, leg int, name string) string {
	return path.Join(a.prefix, exp, fmt.Sprintf("%03d", leg), name)
}

// Archive copies every file in the directory of leg to the archive,
// followed by a manifest listing the checksum of each file and a digest
// of the listing. It returns the keys that were written.
func (a *Archiver) Archive(ctx context.Context, leg *amet.Leg) ([]string, error) {
	entries, err := os.ReadDir(leg.Dir)
	if err != nil {
		return nil, fmt.Errorf("ametutil: archiving leg %d: %w", leg.Number, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var keys, manifest []string
	for _, name := range names {
		key := a.Key(leg.Exp, leg.Number, name)
		sum, err := a.copy(ctx, filepath.Join(leg.Dir, name), key)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
		manifest = append(manifest, sum+"  "+name)
	}
	var b strings.Builder
	for _, line := range manifest {
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "%s  %s\n", hash.Hash(manifest), "digest")

	key := a.Key(leg.Exp, leg.Number, ManifestName)
	if err := a.bucket.WriteAll(ctx, key, []byte(b.String()), nil); err != nil {
		return keys, fmt.Errorf("ametutil: writing blob %s: %v", key, err)
	}
	return append(keys, key), nil
}

// copy uploads the file at path to key and returns the checksum of the
// file contents.
func (a *Archiver) copy(ctx context.Context, path, key string) (string, error) {
	r, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("ametutil: opening file '%s' for archiving: %v", path, err)
	}
	defer r.Close()
	w, err := a.bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return "", fmt.Errorf("ametutil: creating writer for blob %s: %v", key, err)
	}
	h := hash.New()
	if _, err = io.Copy(w, io.TeeReader(r, h)); err != nil {
		w.Close()
		return "", fmt.Errorf("ametutil: copying '%s' to blob %s: %v", path, key, err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("ametutil: writing blob %s: %v", key, err)
	}
	return hash.Sum(h), nil
}

// Close closes the archive bucket.
func (a *Archiver) Close() error { return a.bucket.Close() }
