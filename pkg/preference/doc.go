// Package preference decides whether a notification may be delivered on a
// channel, based on the recipient's preference document.
//
// Engine.IsAllowed evaluates, in order:
//
//  1. the channel's global toggle (email, push, inApp); off denies
//  2. the category's per-channel flag; an explicit false denies, an
//     unconfigured category is allowed
//  3. quiet hours; inside the window only urgent categories (system,
//     security) pass
//  4. otherwise allowed
//
// Any error while reading preferences resolves to allowed and is logged
// with ErrPolicyEvaluation; it never reaches the caller.
//
// Documents are merged with Defaults field by field, so a stored document
// that only sets one flag keeps every other default. Service.Update coerces
// malformed fields back to their default instead of rejecting the update.
package preference
