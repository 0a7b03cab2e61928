// Package api defines wire-format types and converters for the HTTP API
// layer. It translates catalog models into transport-friendly DTOs so
// consumers can render jobs, devices, and clips without coupling to
// internal types.
//
// DTOs use camelCase JSON tags. Internal enums (catalog.JobState,
// catalog.ImportState) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds. Job payloads and results are passed through
// as json.RawMessage to avoid double-encoding.
//
// The device identity token is deliberately absent from DeviceView: it is
// the durable marker secret and has no business leaving the catalog.
package api
