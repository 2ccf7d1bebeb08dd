package api

import (
	"time"

	"github.com/datarhei/srtrelay/srt"
)

// Client is a connected SRT client
type Client struct {
	ID          string `json:"id"`
	SocketID    uint32 `json:"socket_id"`
	Address     string `json:"address"`
	ConnectedAt string `json:"connected_at"` // RFC3339
}

// Unmarshal converts a registry entry
func (c *Client) Unmarshal(client srt.Client) {
	c.ID = client.ID
	c.SocketID = client.SocketId

	if client.Addr != nil {
		c.Address = client.Addr.String()
	}

	c.ConnectedAt = client.ConnectedAt.UTC().Format(time.RFC3339)
}

// Status is the state of the relay. Only the section for the running mode
// is populated.
type Status struct {
	Mode       string              `json:"mode"`
	Broadcast  *srt.BroadcastStats `json:"broadcast,omitempty"`
	Relay      *srt.RelayStats     `json:"relay,omitempty"`
	Connection *srt.Statistics     `json:"connection,omitempty"`
}
