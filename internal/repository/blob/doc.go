// Package blob is a small key-value store on Badger for uploaded alarm sounds
// and the cached quote.
package blob
