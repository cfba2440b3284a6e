// Package sink saves pipeline stage outputs to disk.
package sink
