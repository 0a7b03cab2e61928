// Package identity resolves which known SD card a mounted volume is.
//
// Cards carry a write-once marker file holding a UUID. Volume UIDs from the
// filesystem are a weaker fallback since a reformat rewrites them. The
// Reconciler combines both with a fingerprint-overlap merge so a card that
// was reformatted (losing its marker) folds back into its original device
// record instead of accumulating duplicates.
package identity
