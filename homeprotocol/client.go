package homeprotocol

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/Internet-of-People/mercury-rust-sub000/keyvault"
	"github.com/Internet-of-People/mercury-rust-sub000/logger"
	"github.com/Internet-of-People/mercury-rust-sub000/profile"
	"github.com/Internet-of-People/mercury-rust-sub000/threads"
)

// pingInterval keeps the underlying websocket connection alive the same way a peer-channel
// listener does.
const pingInterval = 30 * time.Second

// Client is a profile's connection to one home: a single duplex websocket carrying correlated
// request/response envelopes plus two pushed streams (events and per-app incoming calls).
type Client struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending map[string]chan Response

	events   chan StreamItem[ProfileEvent]
	calls    map[string]chan StreamItem[IncomingCall]
	readLoop *threads.Thread

	closed bool
}

// Dial opens a websocket connection to a home's RPC endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	wsURL := strings.Replace(url, "http", "ws", 1)

	conn, response, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if response != nil {
			logger.Warn(ctx, "Failed to dial home %s : status %d", url, response.StatusCode)
		}
		return nil, errors.Wrap(ErrTransport, err.Error())
	}

	c := &Client{
		conn:    conn,
		pending: make(map[string]chan Response),
		events:  make(chan StreamItem[ProfileEvent], 16),
		calls:   make(map[string]chan StreamItem[IncomingCall]),
	}

	c.readLoop = threads.NewThread("home_client_read", c.readLoopFunc)
	c.readLoop.Start(ctx)

	return c, nil
}

func (c *Client) readLoopFunc(ctx context.Context, interrupt <-chan interface{}) error {
	defer c.conn.Close()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			c.dispatch(ctx, data)
		}
	}()

	for {
		select {
		case <-interrupt:
			return threads.Interrupted

		case err := <-done:
			c.failAllPending(errors.Wrap(ErrTransport, err.Error()))
			return err

		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"),
				time.Now().Add(time.Second)); err != nil {
				return errors.Wrap(ErrTransport, err.Error())
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Id != "" && env.Op == "" {
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			c.mu.Lock()
			ch, ok := c.pending[resp.Id]
			c.mu.Unlock()
			if ok {
				ch <- resp
			}
			return
		}
	}

	switch env.Op {
	case OpEvents:
		var event ProfileEvent
		item := StreamItem[ProfileEvent]{}
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			item.Err = err
		} else {
			item.Value = event
		}
		c.events <- item

	case OpCheckinApp:
		var call IncomingCall
		if err := json.Unmarshal(env.Payload, &call); err != nil {
			logger.Warn(ctx, "Failed to decode incoming call : %s", err)
			return
		}

		c.mu.Lock()
		ch, ok := c.calls[call.AppId]
		c.mu.Unlock()
		if ok {
			ch <- StreamItem[IncomingCall]{Value: call}
		}

	default:
		logger.Warn(ctx, "Unexpected push envelope op %q", env.Op)
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, ch := range c.pending {
		ch <- Response{Id: id, Error: err.Error()}
	}

	for _, ch := range c.calls {
		ch <- StreamItem[IncomingCall]{Err: err}
	}
	c.events <- StreamItem[ProfileEvent]{Err: err}
}

func (c *Client) call(ctx context.Context, op Operation, payload interface{}, result interface{}) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	replyCh := make(chan Response, 1)

	c.mu.Lock()
	c.pending[id] = replyCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	env := Envelope{Id: id, Op: op, Payload: body}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return errors.Wrap(ErrTransport, err.Error())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp := <-replyCh:
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		if result != nil && resp.Payload != nil {
			return json.Unmarshal(resp.Payload, result)
		}
		return nil
	}
}

// Claim fetches the stored profile for an already-registered, already-authenticated identity.
func (c *Client) Claim(ctx context.Context, id keyvault.ProfileId) (OwnProfile, error) {
	var result OwnProfile
	err := c.call(ctx, OpClaim, struct {
		ProfileId string `json:"profile_id"`
	}{ProfileId: id.String()}, &result)
	return result, err
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (OwnProfile, error) {
	var result OwnProfile
	err := c.call(ctx, OpRegister, req, &result)
	return result, err
}

func (c *Client) Login(ctx context.Context, proof profile.RelationProof) error {
	return c.call(ctx, OpLogin, LoginRequest{HostingProof: proof}, nil)
}

func (c *Client) PairRequest(ctx context.Context, half profile.RelationHalfProof) error {
	return c.call(ctx, OpPairRequest, PairRequestMessage{HalfProof: half}, nil)
}

func (c *Client) PairResponse(ctx context.Context, full profile.RelationProof) error {
	return c.call(ctx, OpPairResponse, PairResponseMessage{FullProof: full}, nil)
}

func (c *Client) Call(ctx context.Context, req CallRequest) (CallResult, error) {
	var result CallResult
	err := c.call(ctx, OpCall, req, &result)
	return result, err
}

func (c *Client) Update(ctx context.Context, own OwnProfile) error {
	return c.call(ctx, OpUpdate, own, nil)
}

func (c *Client) Unregister(ctx context.Context, newHome *string) error {
	return c.call(ctx, OpUnregister, struct {
		NewHome *string `json:"new_home,omitempty"`
	}{NewHome: newHome}, nil)
}

func (c *Client) Ping(ctx context.Context, text string) (string, error) {
	var reply string
	err := c.call(ctx, OpPing, text, &reply)
	return reply, err
}

// Events returns the single event stream for this session. Subscribing again from a second
// Client replaces this one on the server side; this Client's channel then receives a terminal
// ErrStreamReplaced item.
func (c *Client) Events() <-chan StreamItem[ProfileEvent] {
	return c.events
}

// CheckinApp registers interest in calls for appId and returns its call stream.
func (c *Client) CheckinApp(ctx context.Context, appId string) (<-chan StreamItem[IncomingCall], error) {
	ch := make(chan StreamItem[IncomingCall], 16)

	c.mu.Lock()
	c.calls[appId] = ch
	c.mu.Unlock()

	if err := c.call(ctx, OpCheckinApp, struct {
		AppId string `json:"app_id"`
	}{AppId: appId}, nil); err != nil {
		return nil, err
	}

	return ch, nil
}

// Answer replies to a pushed IncomingCall with the callee's sink id, if any.
func (c *Client) Answer(ctx context.Context, appId string, toCaller *string) error {
	return c.call(ctx, OpAnswer, struct {
		AppId    string  `json:"app_id"`
		ToCaller *string `json:"to_caller,omitempty"`
	}{AppId: appId, ToCaller: toCaller}, nil)
}

// Close ends the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.readLoop.Stop(context.Background())
	return c.conn.Close()
}
