// Package passcache caches unlock secrets so a freshly set passphrase does
// not have to be typed again right away.
package passcache
