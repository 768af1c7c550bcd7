// Package preflight runs startup checks: directory access, disk space,
// store reachability, and the external binaries the pipeline shells out to.
package preflight
