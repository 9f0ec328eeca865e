// Package gateway coordinates lazy, credential-gated construction of the
// vector index.
//
// The index does not exist until the first call that carries a credential.
// That build is single-flighted: one caller constructs the embedder, seeds
// the index with a sentinel entry and drains the pending queue, while every
// concurrent caller awaits the same in-flight result. Items submitted before
// any credential arrives wait in a bounded FIFO queue.
//
// The credential the index was built with is fingerprinted (the raw secret is
// not retained); any later call carrying a different credential is rejected
// with core.ErrCredentialMismatch so incompatible embedding spaces can never
// mix within one index.
package gateway
