// Package account orchestrates one telematics account: authentication
// lifecycle, full device enumeration, the cursor-based change-feed poll
// loop and command dispatch with optional wait-until-confirmed semantics.
//
// There is exactly one poller per account. Commands and refreshes run
// concurrently with it, but all registry mutation funnels through the
// registry's own synchronization, and command confirmation is driven
// purely by what the poll cycles observe.
package account
