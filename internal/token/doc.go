// Package token implements the short-lived attendance session codes.
//
// One live token per scope (issuer, year, section, branch, subject, period); creating a new
// token for a scope supersedes the old one immediately. Expiry is lazy: validity is computed
// against the injected clock at read time, and the optional eviction sweep only reclaims memory.
package token
