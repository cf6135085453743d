// Package relay provides a client for the relay chat service: a small
// HTTP client for the REST surface and a WebSocket session for the
// real-time protocol.
package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// GeneralRoom is the ID of the default room every deployment seeds.
const GeneralRoom = "00000000-0000-0000-0000-000000000001"

// Client is a relay API client.
type Client struct {
	BaseURL    string
	Token      string
	UserID     string
	Username   string
	HTTPClient *http.Client
}

// NewClient creates a new relay client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request, attaching the session token when set.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("relay error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is the response from user registration.
type RegisterResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url"`
}

// Register creates a new user account.
func (c *Client) Register(username, password string) (*RegisterResponse, error) {
	body, _ := json.Marshal(RegisterRequest{Username: username, Password: password})
	respBody, err := c.doRequest("POST", "/register", body)
	if err != nil {
		return nil, err
	}

	var resp RegisterResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoginResponse is the response from a successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	ExpiresIn int64  `json:"expires_in"`
}

// Login exchanges credentials for a session token and stores it on the
// client for subsequent requests and WebSocket sessions.
func (c *Client) Login(username, password string) (*LoginResponse, error) {
	body, _ := json.Marshal(RegisterRequest{Username: username, Password: password})
	respBody, err := c.doRequest("POST", "/login", body)
	if err != nil {
		return nil, err
	}

	var resp LoginResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}

	c.Token = resp.Token
	c.UserID = resp.UserID
	c.Username = resp.Username
	return &resp, nil
}

// RoomInfo represents a room in the list response.
type RoomInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MessageCount int64  `json:"message_count"`
	OnlineCount  int    `json:"online_count"`
	LastActive   string `json:"last_active"`
}

// RoomListResponse is the response from listing rooms.
type RoomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Total int        `json:"total"`
}

// ListRooms lists rooms, most recently active first.
func (c *Client) ListRooms(limit, offset int) (*RoomListResponse, error) {
	path := fmt.Sprintf("/rooms?limit=%d&offset=%d", limit, offset)
	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp RoomListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateRoomRequest is the request body for creating a room.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateRoomResponse is the response from creating a room.
type CreateRoomResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateRoom creates a new room. Requires a logged-in client.
func (c *Client) CreateRoom(name, description string) (*CreateRoomResponse, error) {
	body, _ := json.Marshal(CreateRoomRequest{Name: name, Description: description})
	respBody, err := c.doRequest("POST", "/rooms", body)
	if err != nil {
		return nil, err
	}

	var resp CreateRoomResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message represents a chat message.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"`
}

// MessagesResponse is the response from fetching room history.
type MessagesResponse struct {
	RoomID   string    `json:"room_id"`
	Messages []Message `json:"messages"`
}

// GetMessages retrieves recent messages from a room, oldest first.
func (c *Client) GetMessages(roomID string, limit int) (*MessagesResponse, error) {
	path := fmt.Sprintf("/rooms/%s/messages?limit=%d", roomID, limit)
	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UserProfile represents a user's public profile.
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	JoinedAt string `json:"joined_at"`
}

// GetUser gets a user's public profile.
func (c *Client) GetUser(userID string) (*UserProfile, error) {
	respBody, err := c.doRequest("GET", "/users/"+userID, nil)
	if err != nil {
		return nil, err
	}

	var resp UserProfile
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Session is a live WebSocket connection to the relay.
type Session struct {
	conn *websocket.Conn
}

// Connect opens a WebSocket session using the client's stored token.
func (c *Client) Connect() (*Session, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("login before connecting")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed: %s: %w", resp.Status, err)
		}
		return nil, err
	}
	return &Session{conn: conn}, nil
}

// clientFrame is the wire shape of outbound events.
type clientFrame struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Text   string `json:"text,omitempty"`
}

// Join enters a room. The server replies with a load_messages event
// carrying recent history, then announces the join to the room.
func (s *Session) Join(roomID string) error {
	return s.conn.WriteJSON(clientFrame{Type: "join_room", RoomID: roomID})
}

// Send broadcasts a text message to a joined room.
func (s *Session) Send(roomID, text string) error {
	return s.conn.WriteJSON(clientFrame{Type: "send_message", RoomID: roomID, Text: text})
}

// Leave exits a room.
func (s *Session) Leave(roomID string) error {
	return s.conn.WriteJSON(clientFrame{Type: "leave_room", RoomID: roomID})
}

// Member is one entry of a room's online-users list.
type Member struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Event is a decoded server event. Only the fields relevant to the
// event's Type are populated.
type Event struct {
	Type     string    `json:"type"`
	RoomID   string    `json:"room_id,omitempty"`
	UserID   string    `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Text     string    `json:"text,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Users    []Member  `json:"users,omitempty"`
	Message  string    `json:"message,omitempty"`

	// Populated for receive_message events.
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
}

// Next blocks until the server delivers the next event.
func (s *Session) Next() (*Event, error) {
	var ev Event
	if err := s.conn.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Close shuts the session down cleanly.
func (s *Session) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
