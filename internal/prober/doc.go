// Package prober extracts stream metadata from archived clips with ffprobe.
//
// Probing is versioned: a clip probed successfully at the current probe
// version is never re-inspected, while bumping the configured version forces
// every clip through again. The raw ffprobe JSON is retained on the clip so
// future versions can reinterpret old output without touching the archive.
package prober
