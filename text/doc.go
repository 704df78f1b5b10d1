// Package text provides the boundary text codec and the string interning
// cache.
//
// The guest carries text either as raw UTF-8/UTF-16 bytes in its own memory
// or as a small integer id referring to a previously interned string. The
// encoding indicator comes from the wire format and only two values are
// legal; any other indicator is a hard error rather than a best-effort
// decode.
package text
