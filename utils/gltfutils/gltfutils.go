// Package gltfutils converts between qmuntal/gltf documents and the scene graph.
package gltfutils

import "bytes"

const (
	MimeKTX2 = "image/ktx2"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"

	extTextureBasisu = "KHR_texture_basisu"
	extTextureWebP   = "EXT_texture_webp"
)

var glbMagic = []byte("glTF")

// IsBinary reports whether data starts with the GLB header.
func IsBinary(data []byte) bool {
	return bytes.HasPrefix(data, glbMagic)
}

// SniffMime guesses the image mime type from its leading bytes.
func SniffMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return MimePNG
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return MimeJPEG
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return MimeWebP
	case bytes.HasPrefix(data, []byte("\xabKTX 20\xbb\r\n\x1a\n")):
		return MimeKTX2
	}
	return ""
}
