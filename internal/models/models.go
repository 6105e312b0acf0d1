package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FID is a Farcaster user id
type FID uint64

// String returns the decimal form used as the stored viewer key
func (f FID) String() string {
	return strconv.FormatUint(uint64(f), 10)
}

// UnmarshalJSON accepts both JSON numbers and numeric strings
func (f *FID) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid fid %q: %w", raw, err)
	}
	*f = FID(v)
	return nil
}

// MarshalJSON encodes the fid as a JSON number
func (f FID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(f))
}

// CastID identifies a cast by author and hash
type CastID struct {
	FID  FID    `json:"fid" validate:"required"`
	Hash string `json:"hash" validate:"required"`
}

// ViewerStatus is the verification state of a viewer for an image
type ViewerStatus string

const (
	StatusPending  ViewerStatus = "Pending"
	StatusValid    ViewerStatus = "Valid"
	StatusInvalid  ViewerStatus = "Invalid"
	StatusNotFound ViewerStatus = "NotFound"
	StatusError    ViewerStatus = "Error"
)

// IsTerminal reports whether the status is final for a validation run
func (s ViewerStatus) IsTerminal() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusNotFound, StatusError:
		return true
	}
	return false
}

// ViewerState is the verification record of one viewer for one image
type ViewerState struct {
	ID        string       `json:"id"`
	ImageID   string       `json:"image_id"`
	ViewerFID string       `json:"viewer_fid"`
	Status    ViewerStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Image represents an obfuscated image shared in a frame
type Image struct {
	ID              string    `json:"id"`
	CreatorFID      string    `json:"creator_fid"`
	CreatorUsername *string   `json:"creator_username,omitempty"`
	OriginalKey     string    `json:"-"`
	ObfuscatedKey   string    `json:"-"`
	Note            *string   `json:"note,omitempty"`
	IsPaywalled     bool      `json:"is_paywalled"`
	UnlockFee       float64   `json:"unlock_fee"`
	IsContest       bool      `json:"is_contest"`
	PrizeAmount     float64   `json:"prize_amount"`
	IsSolved        bool      `json:"is_solved"`
	CreatedAt       time.Time `json:"created_at"`
}

// TipMessage is a cast read from a hub feed
type TipMessage struct {
	AuthorFID FID
	Timestamp time.Time
	Text      string
	IsReply   bool
}
