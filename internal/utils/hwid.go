package utils

import "github.com/denisbrodbeck/machineid"

// HWID is a stable, app-scoped machine identifier. Falls back to "unknown"
// on platforms where the machine id is unavailable.
var HWID = func() string {
	id, err := machineid.ProtectedID("pilebox")
	if err != nil {
		return "unknown"
	}
	return id
}()
