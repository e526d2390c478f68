// Package api provides the HTTP REST API and WebSocket server for Foyer.
//
// It exposes three surfaces:
//
//   - Public device endpoints: key registration, challenge issuance, and
//     challenge verification. These require no credentials because the
//     protocol itself is the credential.
//   - Device endpoints: report filing and listing, authenticated with
//     the bearer token minted by a successful verification.
//   - Admin endpoints: device seeding, activation, revocation, role
//     assignment, audit queries, and a WebSocket event stream. These
//     require an operator JWT issued by the staff portal.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
