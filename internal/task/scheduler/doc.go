// Package scheduler triggers named jobs from cron expressions or fixed
// intervals. Runs of the same job never overlap; a trigger that fires while
// the previous run is still going is skipped.
package scheduler
