package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Bandstand.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Bandstand.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Bandstand.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns recent queue jobs.
func (c *Client) QueueList(limit int) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Bandstand.QueueList", QueueListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single queue job.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	if err := c.client.Call("Bandstand.QueueDescribe", QueueDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearCompleted removes completed jobs from the queue.
func (c *Client) QueueClearCompleted() (*QueueClearCompletedResponse, error) {
	var resp QueueClearCompletedResponse
	if err := c.client.Call("Bandstand.QueueClearCompleted", QueueClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Trigger enqueues a pipeline stage out of schedule.
func (c *Client) Trigger(jobType string) (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.client.Call("Bandstand.Trigger", TriggerRequest{JobType: jobType}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SourceAdd registers a channel for discovery.
func (c *Client) SourceAdd(kind, name, channelID string) (*SourceAddResponse, error) {
	var resp SourceAddResponse
	req := SourceAddRequest{Kind: kind, Name: name, ChannelID: channelID}
	if err := c.client.Call("Bandstand.SourceAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SourceList returns every registered source.
func (c *Client) SourceList() (*SourceListResponse, error) {
	var resp SourceListResponse
	if err := c.client.Call("Bandstand.SourceList", SourceListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunList returns recent discovery audit rows.
func (c *Client) RunList(limit int) (*RunListResponse, error) {
	var resp RunListResponse
	if err := c.client.Call("Bandstand.RunList", RunListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Bandstand.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
