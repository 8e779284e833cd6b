package files

import (
	"errors"
	"time"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrUnknownKind     = errors.New("unknown file kind")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("file is empty")
)

const (
	// kept in the root path, next to the kind folders
	indexJsonFileName = "files-index.json"

	sniffContentTypeBytes = 512
)

type Kind string

const (
	KindCV     Kind = "cv"
	KindImages Kind = "images"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCV, KindImages:
		return Kind(s), nil
	}
	return "", ErrUnknownKind
}

var allowedContentTypes = map[Kind]map[string]string{
	KindCV: {
		"application/pdf": ".pdf",
	},
	KindImages: {
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	},
}

// File describes a stored upload. Name is the generated on-disk name,
// OriginalName is what the uploader sent.
type File struct {
	Name         string    `json:"name"`
	Kind         Kind      `json:"kind"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
}
