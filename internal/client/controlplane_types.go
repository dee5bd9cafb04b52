package client

// ControlPlaneConfig configures the local HTTP control plane.
type ControlPlaneConfig struct {
	// Addr is the listen address, e.g. "localhost:7438".
	Addr string

	// AuthToken guards the /v1 endpoints when set. Empty disables auth.
	AuthToken string
}
