// Package storage keeps the user linkage table: which backend account
// (email) belongs to which Discord user, guild and posting webhook.
//
// Drivers: "sqlite" (default), "postgres" and "file" (JSON snapshot).
package storage
