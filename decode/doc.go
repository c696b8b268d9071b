// Package decode turns encoded image blobs into bounded RGBA thumbnails.
//
// A Decoder is safe for concurrent use and is called from many workers at
// once. Each Decode call:
//
//  1. consults the optional disk cache and returns a stored thumbnail on hit
//  2. holds one decode-worker slot for the rest of the call
//  3. reads the blob through the IO rate limiter
//  4. reserves the decoded pixel size from the memory budget
//  5. decodes (PNG, JPEG, GIF, BMP, TIFF, WebP) and scales to fit the bound
//  6. writes the thumbnail back to the disk cache
//
// Failures are reported as *Error values carrying the stage that failed.
package decode
