package chord

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/delgado-dev/chordvault/chordid"
	"github.com/delgado-dev/chordvault/transport"
)

const controlTimeout = 2 * time.Second

// Client is the transport.Conn-backed RemoteCaller used in production.
type Client struct {
	local  PeerRef
	static transport.StaticKeyPair
}

// NewClient builds a Client that dials as local with the given Noise identity.
func NewClient(local PeerRef, static transport.StaticKeyPair) *Client {
	return &Client{local: local, static: static}
}

func encodeRef(p PeerRef) string {
	return fmt.Sprintf("%s::%d", p.Address, uint32(p.GUID))
}

func decodeRef(body string) (PeerRef, error) {
	parts := strings.SplitN(body, "::", 2)
	if len(parts) != 2 {
		return PeerRef{}, fmt.Errorf("malformed peer ref %q", body)
	}
	guid, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return PeerRef{}, fmt.Errorf("malformed peer ref guid %q: %w", body, err)
	}
	return PeerRef{Address: parts[0], GUID: chordid.ID(guid)}, nil
}

func (c *Client) call(addr string, reqType byte, body string) (transport.Message, error) {
	conn, err := transport.Connect(addr, c.local, c.static)
	if err != nil {
		return transport.Message{}, err
	}
	defer conn.Close()

	if err := conn.Send(reqType, body); err != nil {
		return transport.Message{}, err
	}
	return conn.Receive(controlTimeout)
}

// FindSuccessor asks addr to resolve k.
func (c *Client) FindSuccessor(addr string, k chordid.ID) (PeerRef, error) {
	reply, err := c.call(addr, transport.TypeFindSuccessor, k.String())
	if err != nil {
		return PeerRef{}, err
	}
	return decodeRef(reply.Body)
}

// GetPredecessor asks addr for its predecessor. ok is false if addr reports none.
func (c *Client) GetPredecessor(addr string) (PeerRef, bool, error) {
	reply, err := c.call(addr, transport.TypeGetPredecessor, "")
	if err != nil {
		return PeerRef{}, false, err
	}
	if reply.Body == "none" {
		return PeerRef{}, false, nil
	}
	ref, err := decodeRef(reply.Body)
	return ref, err == nil, err
}

// Notify tells addr that self may be its predecessor.
func (c *Client) Notify(addr string, self PeerRef) error {
	_, err := c.call(addr, transport.TypeNotify, encodeRef(self))
	return err
}

// Ping checks addr's liveness.
func (c *Client) Ping(addr string) error {
	_, err := c.call(addr, transport.TypePing, "")
	return err
}
