// Package attendance implements the redemption path for session codes.
//
// A redemption is accepted once per (code, student) pair: the service checks the token,
// records the redemption, bumps the live join counter, and emits the join event through
// the hub. Rejections (expired, unknown, duplicate) are outcomes, not errors.
package attendance
