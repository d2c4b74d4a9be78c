package models

// Container is a read-through snapshot of one workload on the host. It is
// assembled live from the Docker Engine (list + inspect) and never persisted.
type Container struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	State     string          `json:"state"`
	Status    string          `json:"status"`
	Ports     []ContainerPort `json:"ports"`
	Created   string          `json:"created"`
	TTY       bool            `json:"tty"`
	OpenStdin bool            `json:"openStdin"`
}

// ContainerPort is one exposed port mapping. PublicPort is zero when the port
// is not published on the host.
type ContainerPort struct {
	PrivatePort uint16 `json:"privatePort"`
	PublicPort  uint16 `json:"publicPort,omitempty"`
	Type        string `json:"type"`
}
