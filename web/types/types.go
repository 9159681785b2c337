package types

import "time"

// Message roles as they appear in session blobs and on the wire.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// WelcomeMessageID marks the synthetic greeting prepended to every new
// session. It is display-only and excluded when seeding provider history.
const WelcomeMessageID = "welcome"

// Place is one grounded place reference attached to a model message.
// Immutable once attached.
type Place struct {
	Title       string `json:"title"`
	URI         string `json:"uri"`
	PlaceID     string `json:"placeId,omitempty"`
	Address     string `json:"address,omitempty"`
	Description string `json:"description,omitempty"`
}

// Message is a single entry in a session's message log.
// IsThinking marks the transient placeholder that is resolved in place
// once the model responds.
type Message struct {
	ID         string  `json:"id"`
	Role       string  `json:"role"`
	Text       string  `json:"text"`
	Places     []Place `json:"places,omitempty"`
	IsThinking bool    `json:"isThinking,omitempty"`
}

// ChatSession is one independent conversation thread. The persisted blob
// schema is exactly []ChatSession marshaled as JSON.
type ChatSession struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// GuestID is the reserved identity id for anonymous use. Guest sessions
// live in process-scoped storage only.
const GuestID = "guest"

// Identity is the opaque credential record supplied by the external
// sign-in provider. The zero value means signed out.
type Identity struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURI string `json:"avatarUri,omitempty"`
}

// Guest returns the anonymous identity.
func Guest() Identity {
	return Identity{ID: GuestID}
}

// IsGuest reports whether the identity is the anonymous one.
func (i Identity) IsGuest() bool {
	return i.ID == GuestID
}

// IsZero reports whether no identity is present at all (signed out and
// not guest). Stores skip persistence for the zero identity.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// LatLng is an optional location hint passed through to the provider
// unmodified.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TurnResult is the outcome of one sent turn: the model's text and any
// places extracted from grounding data. Degraded results carry apology
// text and an empty place list.
type TurnResult struct {
	Text   string
	Places []Place
}

// SessionSummary is the list-view projection of a session.
type SessionSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
	Active      bool      `json:"active"`
}

// RenderedMessage is a message plus its display HTML. The HTML is
// derived on the read path and never enters the session blob.
type RenderedMessage struct {
	Message
	HTML string `json:"html,omitempty"`
}
