package models

import (
	"sort"
	"time"
)

// Counters holds the per-server tallies written to the stats file
type Counters struct {
	Errors   int `json:"errors" bson:"errors"`
	Warnings int `json:"warnings" bson:"warnings"`
}

// ServerStats maps a server identity to its counters
type ServerStats map[string]Counters

// Servers returns the server identities in sorted order
func (s ServerStats) Servers() []string {
	servers := make([]string, 0, len(s))
	for server := range s {
		servers = append(servers, server)
	}
	sort.Strings(servers)
	return servers
}

// Snapshot is the result of one full scan of the log file
type Snapshot struct {
	Stats        ServerStats `json:"stats"`
	TakenAt      time.Time   `json:"taken_at"`
	LinesRead    int         `json:"lines_read"`
	LinesMatched int         `json:"lines_matched"`
	LinesCounted int         `json:"lines_counted"`
}

// Health summarizes the cycle loop for status endpoints
type Health struct {
	Cycles      uint64    `json:"cycles"`
	LastCycle   time.Time `json:"last_cycle"`
	LastError   string    `json:"last_error,omitempty"`
	HasSnapshot bool      `json:"has_snapshot"`
}
