package media

import "errors"

var (
	// ErrUnsupportedType rejects uploads whose filename extension is not an accepted image type.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrPayloadTooLarge rejects uploads above the pre-transcode byte ceiling.
	ErrPayloadTooLarge = errors.New("upload too large")
	// ErrInvalidImage reports bytes that could not be decoded as an image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrStorageWrite reports a blob store write failure.
	ErrStorageWrite = errors.New("store image")
)
