// Package weibo implements a client for the Weibo mobile API (m.weibo.cn).
//
// The package is built around two pieces:
//
//   - Executor performs one logical outbound request with a fixed
//     per-attempt timeout, bounded retries with randomized backoff keyed
//     to the failure classification, and proxy selection through the
//     proxy pool. A depleted pool degrades to direct calls.
//   - Client layers the endpoint operations on top: user profiles, post
//     timelines with long-text expansion, post detail, user and post
//     search, and image downloading with pre-request pacing.
//
// Rate-limit responses (status 432/429) back off inside a longer window
// than transport failures, and terminal errors report the failure kind
// plus the number of attempts made, so callers can skip one unit of work
// instead of aborting a batch.
package weibo
