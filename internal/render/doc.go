// Package render converts between the two status representations a device
// can serve: a ready-to-insert <tbody> markup fragment and a flat JSON object.
//
// Both are reduced to an ordered list of [Field] values, and either can be
// turned back into <tbody> markup with [Tbody]. The functions are pure and
// safe for concurrent use.
package render
