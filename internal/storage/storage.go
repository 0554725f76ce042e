// Package storage abstracts the object store that holds payment
// proofs and client photos. The engine only needs opaque upload and
// delete operations; whichever backend serves them is interchangeable.
package storage

import "context"

// StoredObject identifies one uploaded object. Ref is the stable
// reference used for later deletion; URL is what clients fetch.
type StoredObject struct {
	Ref string
	URL string
}

// ObjectStore uploads and deletes opaque binary objects grouped into
// folders ("proofs", "photos"). Upload must be durable before it
// returns; Delete of an unknown ref is not an error.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, folder, filename string) (StoredObject, error)
	Delete(ctx context.Context, ref string) error
}
