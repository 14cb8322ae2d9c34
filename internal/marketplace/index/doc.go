// Package index keeps in-memory search indexes over the publicly searchable
// entities: a geohash grid for radius queries, an inverted text index and
// inverted categorical sets. The entity store stays authoritative; a
// Reconciler repairs any drift between the two.
package index
