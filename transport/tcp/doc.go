// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements an api.Allocator[*Conn] that dials outbound TCP
// connections for use as pooled resources, tuning socket options via
// golang.org/x/sys and aggregating Close errors via fishy/wrapreader.
package tcp
