package models

import "time"

// CallDirection is a closed set of call directions from the owner's view.
type CallDirection string

const (
	CallIncoming CallDirection = "incoming"
	CallOutgoing CallDirection = "outgoing"
)

// Valid reports whether d is a known direction.
func (d CallDirection) Valid() bool {
	return d == CallIncoming || d == CallOutgoing
}

// CallStatus is a closed set of call outcomes.
type CallStatus string

const (
	CallMissed   CallStatus = "missed"
	CallAnswered CallStatus = "answered"
	CallDeclined CallStatus = "declined"
)

// Valid reports whether s is a known status.
func (s CallStatus) Valid() bool {
	return s == CallMissed || s == CallAnswered || s == CallDeclined
}

// CallLog is one per-user call history entry. Both ends of a call log their
// own row; rows are never shared between users.
type CallLog struct {
	ID         string        `json:"id"`
	UserID     int64         `json:"-"`
	PeerUserID int64         `json:"peerUserId"`
	Direction  CallDirection `json:"direction"`
	Status     CallStatus    `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	EndedAt    *time.Time    `json:"endedAt"`

	Peer *UserCard `json:"peer,omitempty"`
}
