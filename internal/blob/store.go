package blob

import "context"

// Store is a flat remote folder of named objects. Writes overwrite
// unconditionally; there is no revision check, the last upload wins.
// Every transport fault is reported as apperr.ErrRemoteUnavailable.
type Store interface {
	Exists(ctx context.Context, name string) (bool, error)
	// Download copies the object to dst. It returns false and leaves no file
	// at dst when the object does not exist.
	Download(ctx context.Context, name, dst string) (bool, error)
	// Upload pushes the content of src to the object, creating it if needed.
	Upload(ctx context.Context, name, src string) error
	// List returns the names of regular files in the folder, sorted.
	List(ctx context.Context) ([]string, error)
}
