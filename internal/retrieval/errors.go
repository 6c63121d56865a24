package retrieval

import "errors"

// ErrEmbedding wraps query embedding failures. The retrieval layer
// performs no retry and has no fallback; the caller decides.
var ErrEmbedding = errors.New("query embedding failed")
