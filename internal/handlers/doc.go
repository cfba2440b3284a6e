// Package handlers is the table of compiled routines. Feature manifests
// refer to routines by name; the table is filled at startup by modules and
// is the only way a filesystem-declared feature gets executable code.
package handlers
