// Affinity - Trait-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/affinity

/*
Package api exposes the recommendation pipeline over HTTP using the chi
router.

Routes:

	POST /api/v1/recommendations/{category}          generate (body {"force_refresh": bool})
	GET  /api/v1/recommendations/{category}/history  archived results (?limit=N)
	GET  /api/v1/health/live                         liveness
	GET  /api/v1/health/ready                        readiness (store ping)
	GET  /metrics                                    Prometheus exposition

Authentication happens upstream. The auth proxy forwards the user id in a
header (X-User-ID by default); requests without a valid id are rejected with
401 before reaching the pipeline.

Every JSON response uses the APIResponse envelope. Errors carry a machine
readable code and a user-facing message; pipeline errors are mapped through
recommend.UserError so upstream text never reaches clients.
*/
package api
