// Package keyword implements the keyword matching engine shared by the
// crawler and the filter: parsing raw keyword entries (plain terms,
// regular-expression searches, and assertion patterns), matching them
// against extracted page text, and encoding/decoding the delimited match
// string persisted in the link store.
package keyword
