// Package hash provides checksum helpers for data integrity.
//
// All checksums use CRC32-Castagnoli (CRC32C), the algorithm S3 accepts for
// upload integrity validation and the one hardware-accelerated on x86 (SSE4.2)
// and ARM (CRC extension).
//
//	checksum := hash.CRC32C(data)
//	encoded := hash.CRC32CBase64(data) // S3 x-amz-checksum-crc32c format
package hash
