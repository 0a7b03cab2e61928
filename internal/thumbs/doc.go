// Package thumbs generates and caches clip thumbnails.
//
// The cache key is derived from the absolute source path and target
// dimensions, so lookups never touch the catalog. Encodes are bounded by a
// weighted semaphore and an in-flight set: concurrent requests for the same
// output coalesce into one ffmpeg invocation, and the system-wide number of
// simultaneous encodes stays under the configured limit.
package thumbs
