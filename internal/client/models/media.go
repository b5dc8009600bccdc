package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// MediaKind selects which of the two media slots a post renders into.
type MediaKind string

const (
	MediaNone  MediaKind = ""
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

// ParseMedia sniffs the kind of a data-URI. The declared content type is
// used when it is an image or video type; otherwise the payload bytes are
// sniffed. An empty string is MediaNone.
func ParseMedia(uri string) (MediaKind, error) {
	if uri == "" {
		return MediaNone, nil
	}

	du, err := dataurl.DecodeString(uri)
	if err != nil {
		return MediaNone, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	if kind := kindOf(du.MediaType.ContentType()); kind != MediaNone {
		return kind, nil
	}
	if kind := kindOf(http.DetectContentType(du.Data)); kind != MediaNone {
		return kind, nil
	}
	return MediaNone, ErrUnsupportedMedia
}

// EncodeMedia turns raw file bytes into a data-URI, rejecting anything that
// is neither an image nor a video.
func EncodeMedia(data []byte) (string, MediaKind, error) {
	contentType := http.DetectContentType(data)
	kind := kindOf(contentType)
	if kind == MediaNone {
		return "", MediaNone, fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return dataurl.New(data, mediaType).String(), kind, nil
}

func kindOf(contentType string) MediaKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MediaImage
	case strings.HasPrefix(contentType, "video/"):
		return MediaVideo
	default:
		return MediaNone
	}
}
