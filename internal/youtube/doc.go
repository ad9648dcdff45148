// Package youtube asks YouTube for the most recent upload of a channel.
//
// Two probers are available:
//   - APIProber: Data API v3 "search" endpoint (needs an API key, costs quota)
//   - FeedProber: the public per-channel Atom feed (no key, no quota)
//
// Both return a feed.ProbeResult for every outcome and never panic on bad
// upstream data.
package youtube
