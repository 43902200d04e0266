/*
Package httpserver implements the operator HTTP surface of the keymaster state service.

Every request that touches keymaster state runs as one keymaster.Context cycle,
so HTTP requests are serialized with the command dispatcher and the scratch
arena is wiped after each of them.

# Endpoints

Health and diagnostics:

  - GET /livez - liveness probe
  - GET /readyz - readiness probe, 503 while draining
  - GET /drain - mark the server not ready
  - GET /undrain - mark the server ready again

State inspection and administration:

  - GET /api/v1/status - arena metrics, auth tag occupancy, operation pool
    occupancy and which secrets are provisioned
  - GET /api/v1/authtags - every reserved auth tag with its usage counter
  - GET /api/v1/authtags/{tag} - the usage counter of one tag (24 hex characters)
  - DELETE /api/v1/authtags - remove every auth tag (factory reset)

# Errors

Failures are returned as JSON:

	{"error": "command not allowed: entry not found", "sw": "6986"}

where sw is the ISO 7816 status word the dispatcher would answer with. The
HTTP status follows the error class: 400 for invalid data, 404 for unknown
tags, 409 for requests not allowed in the current state, 503 when the state
store is unavailable and 500 otherwise.
*/
package httpserver
