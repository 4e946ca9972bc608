// Package conflict decides whether two copies of a versioned record
// disagree and produces a resolved record under a caller-chosen strategy.
//
// # Detection
//
// Two copies conflict only when BOTH "__version" and "__modifiedAt"
// differ. A version bump with an unchanged timestamp, or a new timestamp
// with an unchanged version, is not a conflict:
//
//	local  {__version:1, __modifiedAt:100}
//	remote {__version:2, __modifiedAt:100}  -> no conflict
//	remote {__version:2, __modifiedAt:200}  -> conflict
//
// Numeric metadata compares by value, so 2, 2.0 and json.Number("2") are
// the same version.
//
// # Resolution
//
//   - local:  the local copy, unchanged
//   - remote: the remote copy, unchanged
//   - merge:  metadata as a unit from the side with the later
//     "__modifiedAt" (ties keep local), the larger value for business
//     fields numeric on both sides, the local value for everything else
//
// Detect and Resolve are independent. Every Resolve call is recorded by
// the Resolver whether or not Detect was consulted first.
package conflict
