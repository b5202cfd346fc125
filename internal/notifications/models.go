package notifications

import (
	"time"
)

// MessageType names a push message
type MessageType string

const (
	// MessageTypeConnected is sent once after the upgrade
	MessageTypeConnected MessageType = "connected"
	// MessageTypeProjectsChanged tells clients to re-fetch the project list
	MessageTypeProjectsChanged MessageType = "projects.changed"
)

// Message is what every connected client receives
type Message struct {
	Type      MessageType            `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ProjectsChanged builds the refetch message for one mutation
func ProjectsChanged(projectID int64, notice, status string) Message {
	return Message{
		Type: MessageTypeProjectsChanged,
		Data: map[string]interface{}{
			"project_id": projectID,
			"notice":     notice,
			"status":     status,
		},
		Timestamp: time.Now(),
	}
}
