// Package record models the versioned business records that tabs exchange
// and that the conflict package reconciles.
//
// A Record is an arbitrary JSON object. The only structure it must carry is
// the optimistic-concurrency metadata: "__version" and "__modifiedAt". Any key
// starting with "__" is treated as metadata.
//
// The package also provides a canonical JSON encoding (sorted keys, NFC
// strings, no HTML escaping) used to fingerprint records and to render
// deterministic traces.
package record
