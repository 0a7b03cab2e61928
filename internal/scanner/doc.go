// Package scanner enumerates dashcam recordings on a mounted SD card.
//
// Cards are recognized by their recording directory layout (cont_rec,
// evt_rec, and friends). Files are identified by a fingerprint derived from
// relative path, size, and modification time so a scan never has to read
// file contents.
package scanner
