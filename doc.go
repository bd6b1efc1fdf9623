// Package auth manages the account and session lifecycle of a token based
// API: sign-up with email verification, sign-in, session verification,
// access token refresh and logout.
//
// Tokens:
//   - Access and refresh tokens are HS256 JWTs signed with distinct secrets
//     and tagged with their kind, so one can never be used as the other.
//     TokenCodec is generic over the payload shape (AccessPayload or
//     VerificationPayload).
//   - A signed token is never trusted on its own. VerifySession requires the
//     token to be the one currently registered for the user and device, which
//     is what makes logout and re-login revoke older tokens.
//
// Storage:
//   - Users, sessions and refresh tokens live in SQL through Bun. Sessions are
//     keyed by (user, device) and upserted on every sign-in. Refresh tokens are
//     stored as SHA-256 digests and revoked all at once on logout.
//   - The session registry can be swapped for the Redis implementation in the
//     redisstore package.
//
// Side effects:
//   - Verification mail, directory provisioning and activity events run
//     best-effort. Failures are logged and never change the result of the
//     request that produced them.
package auth
