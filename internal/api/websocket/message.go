package websocket

// Wire protocol: small tagged JSON records, one per frame. Clients send
// "command" and "stdin" frames; the session sends "logs", "commandOutput"
// and "error" frames, each tagged with the container they belong to.
const (
	msgTypeCommand       = "command"
	msgTypeStdin         = "stdin"
	msgTypeLogs          = "logs"
	msgTypeCommandOutput = "commandOutput"
	msgTypeError         = "error"
)

type inMessage struct {
	Type        string `json:"type"`
	ContainerID string `json:"containerId,omitempty"`
	Command     string `json:"command,omitempty"`
	Input       string `json:"input,omitempty"`
}

type outMessage struct {
	Type        string `json:"type"`
	ContainerID string `json:"containerId,omitempty"`
	Log         string `json:"log,omitempty"`
	Output      string `json:"output,omitempty"`
	Message     string `json:"message,omitempty"`
}
