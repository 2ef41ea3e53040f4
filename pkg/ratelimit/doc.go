// Package ratelimit provides token-bucket rate limiting for the build
// intake: one bucket per client address and one per job of a client, with
// bucket counts and rejections reported through the metrics package.
package ratelimit
