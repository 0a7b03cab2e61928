// Package volumes discovers mounted removable media via lsblk, caches the
// block-device snapshot behind a short TTL, and watches udev netlink events
// so a freshly inserted card triggers work without polling.
package volumes
