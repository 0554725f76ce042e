package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore is an ObjectStore backed by a local directory. It exists
// for single-host deployments and development; the Ref it hands out is
// the path relative to the root so it stays valid if the root moves.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates the root directory if needed and returns a
// store writing beneath it. baseURL is prefixed onto refs to form
// client-facing URLs (e.g. "/media").
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes the object under a random name inside the folder and
// fsyncs before returning, so a returned ref is always durable.
func (s *DiskStore) Upload(ctx context.Context, data []byte, folder, filename string) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, err
	}
	ext := filepath.Ext(filename)
	ref := filepath.Join(folder, uuid.NewString()+ext)
	full := filepath.Join(s.root, ref)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return StoredObject{}, err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StoredObject{}, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return StoredObject{}, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return StoredObject{}, err
	}
	if err := f.Close(); err != nil {
		return StoredObject{}, err
	}
	return StoredObject{Ref: ref, URL: s.baseURL + "/" + filepath.ToSlash(ref)}, nil
}

// Delete removes the object; a ref that no longer exists is treated
// as already deleted.
func (s *DiskStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.root, ref))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
