// Package preflight provides readiness checks for the external tools and
// filesystem paths dashvault depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs any failures so an operator
//     sees a misconfigured archive or a missing binary before the first scan.
//   - The CLI "dashvault status" command renders the same results as a table.
//
// Directory checks use unix.Access so they reflect the effective permissions
// of the running process rather than just the file mode bits.
package preflight
