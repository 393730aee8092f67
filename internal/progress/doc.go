// Package progress scales nested operation progress onto a parent's range.
package progress
