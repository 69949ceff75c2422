package app

import (
	"log"
	"mime"
)

// Editor images are served from storage by extension; some base images
// ship without these entries.
func init() {
	ensureMimeType(".webp", "image/webp")
	ensureMimeType(".avif", "image/avif")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		log.Printf("app: failed to register MIME type for %s: %v", ext, err)
	}
}
