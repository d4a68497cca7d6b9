// Package access implements Helmsman's RBAC decision layer.
//
// # Overview
//
// Every mutating or reading request against a managed object funnels
// through one question: may this user perform this action on this
// object. The answer is computed from already-loaded state, performs
// no writes, and is safe to evaluate concurrently.
//
// # Architecture
//
// The layer is built from four pieces:
//
//  1. Policies: one per managed object type, each implementing
//     CanAdd, CanChange, CanRead and CanDelete.
//  2. Superuser guard: an explicit higher-order wrapper applied to
//     every entry point; superusers short-circuit to allowed before
//     any other field of the request is touched.
//  3. Sensitive-field diff: for updates, the proposed payload is
//     compared against the object's current foreign keys so that
//     resubmitting unchanged references never demands fresh
//     authorization.
//  4. Registry: object-type tag to policy, resolved once at startup.
//
// # Error policy
//
// A denied decision is a value, not an error. Malformed or
// nonexistent foreign-key ids in caller-supplied payloads yield a
// denied decision; they never escape as errors, because CanAdd is
// exposed to end-user input. Infrastructure failures (role store
// unreachable) do propagate: they indicate a broken dependency, not a
// bad request. There is nothing to retry; decisions are idempotent.
package access
