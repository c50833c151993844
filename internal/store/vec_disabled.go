//go:build !sqlite_vec || !cgo

package store

// vecCompiled reports whether the sqlite-vec extension is linked in. Builds
// without the sqlite_vec tag fall back to in-process cosine ranking.
const vecCompiled = false
