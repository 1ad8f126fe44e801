// Package images turns stored image references into URLs the storefront can display.
package images

import (
	"fmt"
	"path"
	"strings"
)

const (
	Placeholder      = "/placeholder.svg?height=200&width=200"
	ProxyPlaceholder = "/placeholder.svg?height=400&width=400"
	ProxyPrefix      = "/api/image-proxy/"
)

type Resolver struct {
	StorageURL  string
	Bucket      string
	Placeholder string
}

func NewResolver(storageURL, bucket string) Resolver {
	return Resolver{
		StorageURL:  strings.TrimRight(storageURL, "/"),
		Bucket:      bucket,
		Placeholder: Placeholder,
	}
}

// Resolve picks a displayable URL for a product image. It never returns "".
// Precedence: direct storage path, rewritten proxy reference, relative path,
// absolute URL, placeholder.
func (r Resolver) Resolve(imagePath, imageURL string) string {
	if imagePath != "" && r.StorageURL != "" {
		return r.direct(imagePath)
	}

	if strings.HasPrefix(imageURL, ProxyPrefix) {
		objectPath := strings.SplitN(strings.TrimPrefix(imageURL, ProxyPrefix), "?", 2)[0]
		if len(strings.Split(objectPath, "/")) >= 2 && r.StorageURL != "" {
			return r.direct(objectPath)
		}
		return r.placeholder()
	}

	if strings.HasPrefix(imageURL, "/") {
		return imageURL
	}
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return imageURL
	}
	return r.placeholder()
}

// ProxyURL is the proxy-style reference for a stored object.
func ProxyURL(objectPath string, version int64) string {
	return fmt.Sprintf("%s%s?t=%d", ProxyPrefix, strings.TrimLeft(objectPath, "/"), version)
}

func (r Resolver) direct(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", r.StorageURL, r.Bucket, strings.TrimLeft(objectPath, "/"))
}

func (r Resolver) placeholder() string {
	if r.Placeholder == "" {
		return Placeholder
	}
	return r.Placeholder
}

// ContentTypeFor derives the MIME type served for an object from its extension.
func ContentTypeFor(objectPath string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(objectPath), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "svg":
		return "image/svg+xml"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
