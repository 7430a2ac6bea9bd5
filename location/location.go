// Package location implements a pflag.Value that accepts either a local
// filesystem path or an s3://bucket/prefix object-store URI, used by the
// assemble subcommand's -o/--output flag.
package location

import (
	"strings"

	"github.com/pkg/errors"
)

// ObjectStoreURI is a parsed s3://bucket/key-prefix location.
type ObjectStoreURI struct {
	Bucket string
	Prefix string
}

func (u ObjectStoreURI) String() string {
	return "s3://" + u.Bucket + "/" + u.Prefix
}

func parseObjectStoreURI(raw string) (ObjectStoreURI, error) {
	rest := strings.TrimPrefix(raw, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return ObjectStoreURI{}, errors.Errorf("s3 location %q is missing a bucket name", raw)
	}
	u := ObjectStoreURI{Bucket: parts[0]}
	if len(parts) == 2 {
		u.Prefix = parts[1]
	}
	return u, nil
}

// Location implements pflag.Value. Exactly one of LocalPath or ObjectStore
// is set once parsed.
type Location struct {
	LocalPath   *string
	ObjectStore *ObjectStoreURI
}

func (l Location) String() string {
	if l.LocalPath != nil {
		return *l.LocalPath
	} else if l.ObjectStore != nil {
		return l.ObjectStore.String()
	}
	return ""
}

func (l *Location) Set(raw string) error {
	if len(raw) == 0 {
		return errors.Errorf("location cannot be empty")
	}

	if strings.HasPrefix(raw, "s3://") {
		u, err := parseObjectStoreURI(raw)
		if err != nil {
			return err
		}
		l.ObjectStore = &u
		return nil
	}

	l.LocalPath = &raw
	return nil
}

func (Location) Type() string {
	return "location"
}

func (l Location) IsSet() bool {
	return l.LocalPath != nil || l.ObjectStore != nil
}
