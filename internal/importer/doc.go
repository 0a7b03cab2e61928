// Package importer moves recordings from a mounted card into the
// content-addressed archive.
//
// Every file is staged under a generated name, hashed in full, and either
// deduplicated against an existing clip or promoted into the archive under a
// date-bucketed, hash-prefixed path. The source file on the card is never
// modified or removed.
package importer
