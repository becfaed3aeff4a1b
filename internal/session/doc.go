// Package session
// Author: momentics <momentics@gmail.com>
//
// Tracks in-flight pooled values by caller-supplied id, off the pool's hot
// acquire/release path, so debug probes and metrics can answer "what does
// worker X currently hold" without touching the pool itself.

package session
