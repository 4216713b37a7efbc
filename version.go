// Package monthly holds shared metadata for the monthly cash-flow
// analysis launcher.
package monthly

// Version is the launcher version, bumped at release time.
const Version = "0.2.0"
