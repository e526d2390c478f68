// Package deviceauth implements challenge-response authentication for staff
// handheld devices.
//
// Provisioning is admin-seeded: an operator creates a device row (PENDING)
// before the device ever connects. The device then attaches its public key
// exactly once, an operator activates it, and from then on the device proves
// possession of its private key to obtain a bearer token:
//
//  1. Device requests a challenge: a 32-byte random nonce, stored as the
//     single outstanding challenge for that device (a new request overwrites
//     the previous one).
//  2. Device signs the raw nonce bytes with its private key (ECDSA P-256 over
//     SHA-256 with an ASN.1 DER signature, or Ed25519) and presents the
//     signature together with the nonce.
//  3. The verifier walks a fixed gate order: registered, not revoked, active,
//     key attached, challenge outstanding, nonce match (constant time), not
//     expired, signature valid. The algorithm always comes from the stored
//     registration, never from the caller.
//  4. On success the challenge is consumed atomically (a replay of the same
//     nonce fails) and an opaque bearer token is issued. Only a keyed hash of
//     the token is stored.
//
// Public keys are accepted in four formats (PEM SPKI, base64 DER SPKI, base64
// uncompressed P-256 point, raw 32-byte Ed25519) and normalised to canonical
// DER SPKI at registration, so verification never re-parses caller input.
//
// Roles gate what an authenticated device may do. An empty role set means
// unrestricted — legacy devices provisioned before roles existed keep working.
package deviceauth
