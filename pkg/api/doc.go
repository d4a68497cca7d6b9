// Package api is the HTTP surface of the Helmsman access service.
//
// The decision endpoints translate policy outcomes to status codes: a
// permitted operation answers 200 with allowed=true, a denial answers
// 403, and a missing target object 404. Infrastructure failures are
// never mapped to a denial; they answer 500 so callers can tell "no"
// from "unknown". Provider-configuration validation answers 400 with
// the accumulated field errors.
package api
