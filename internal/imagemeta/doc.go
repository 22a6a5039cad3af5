// Package imagemeta inspects image files before they are uploaded.
//
// Check reads the EXIF metadata of an image and reports tags that can
// identify the photographer: GPS coordinates, device serial numbers, owner
// names, host computer names, camera models, software and timestamps.
// Digest returns a content digest used to recognize the same image across
// searches.
package imagemeta
