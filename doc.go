// Package manifd distributes a single canonical manifest document to many
// uncoordinated consumers.
//
// Revisions of the manifest are content-addressed: a revision is identified
// by the sha256 digest of its bytes, and an append-only log assigns each
// published revision a strictly increasing sequence number. A small HTTP
// service exposes the latest revision and the immutable content blobs;
// consumers run a sync client (typically from a pre-commit hook) that
// compares a locally cached digest against the latest pointer, downloads
// only on change, and replaces the local file atomically.
//
// Publishing:
//
//	manifd publish https://manifests.example.com AGENTS.md --author alice
//
// Consuming (hook side):
//
//	manifd sync https://manifests.example.com AGENTS.md
//
// The sync exit status distinguishes failure classes so hook frameworks can
// react: 0 for up-to-date or updated, 2 for exhausted network retries,
// 3 for an integrity mismatch, 4 for a blown time budget, 5 when another
// sync already holds the local lock.
package manifd
