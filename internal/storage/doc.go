// Package storage persists the detection log and notification cooldown
// state across restarts.
package storage
