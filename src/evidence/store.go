package evidence

import (
	"context"
	"fmt"

	"github.com/OneOfOne/xxhash"
)

// Store persists claim evidence images. Exactly one implementation is active
// per deployment; the claim lifecycle never learns which. Both operations are
// idempotent and Delete must derive the storage key purely from the URL that
// Put returned, because the claim record stores only the URL.
type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// objectKey derives the content-addressed object name: the same bytes always
// map to the same key, so re-uploads are naturally idempotent.
func objectKey(data []byte, contentType string) string {
	return fmt.Sprintf("%016x%s", xxhash.Checksum64(data), extFor(contentType))
}

func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
