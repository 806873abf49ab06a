package protocol

import "errors"

type URL struct {
	URL string `json:"url"`
}

func (u URL) Validate() error {
	if u.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

type ConnectionID struct {
	ConnectionID string `json:"connection_id"`
}

func (c ConnectionID) Validate() error {
	if c.ConnectionID == "" {
		return errors.New("connection_id is required")
	}
	return nil
}

// Empty is the payload of operations that only acknowledge.
type Empty struct{}

// Stats reports registry occupancy.
type Stats struct {
	Available int `json:"available"`
	Leased    int `json:"leased"`
}

// Connection subsystem.
var (
	ConnectionCreate = NewRoute[URL, ConnectionID]("connection", "create")
	ConnectionClose  = NewRoute[ConnectionID, Empty]("connection", "close")
	ConnectionCheck  = NewRoute[ConnectionID, bool]("connection", "check")
)

// Relay subsystem.
var (
	RelayStats = NewRoute[Empty, Stats]("relay", "stats")
)
