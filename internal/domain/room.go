package domain

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"
)

const (
	DefaultSyncSensitivity = 0.5
	DefaultDisplayName     = "Anonymous"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomFull          = errors.New("room is full")
	ErrRoomLimitReached  = errors.New("room limit reached")
	ErrMemberNotFound    = errors.New("member not found")
	ErrAlreadyInRoom     = errors.New("already in room")
	ErrNotHost           = errors.New("not host")
	ErrNotInRoom         = errors.New("not in a room")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrInvalidRoomID     = errors.New("invalid room id")
	ErrInvalidUsername   = errors.New("invalid username")
	ErrRateLimited       = errors.New("rate limited")
)

type Settings struct {
	SyncSensitivity float64 `json:"syncSensitivity"`
	StrictMode      bool    `json:"strictMode"`
	AutoPause       bool    `json:"autoPause"`
}

func DefaultSettings() Settings {
	return Settings{
		SyncSensitivity: DefaultSyncSensitivity,
		StrictMode:      false,
		AutoPause:       false,
	}
}

// SettingsPatch is a partial update; nil fields keep their current value.
type SettingsPatch struct {
	SyncSensitivity *float64 `json:"syncSensitivity,omitempty"`
	StrictMode      *bool    `json:"strictMode,omitempty"`
	AutoPause       *bool    `json:"autoPause,omitempty"`
}

func (p SettingsPatch) Validate() error {
	if p.SyncSensitivity != nil {
		v := *p.SyncSensitivity
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidSettings
		}
	}
	return nil
}

func (s Settings) Merge(p SettingsPatch) Settings {
	if p.SyncSensitivity != nil {
		s.SyncSensitivity = *p.SyncSensitivity
	}
	if p.StrictMode != nil {
		s.StrictMode = *p.StrictMode
	}
	if p.AutoPause != nil {
		s.AutoPause = *p.AutoPause
	}
	return s
}

// Room is owned by a single writer (the coordinator loop); it carries no lock.
type Room struct {
	ID         string
	HostID     string
	CurrentURL *string
	Settings   Settings
	CreatedAt  time.Time

	// members keeps join order; failover promotes members[0].
	members      []string
	displayNames map[string]string
}

// RoomSnapshot is the read-only view handed to anything outside the writer.
type RoomSnapshot struct {
	ID          string         `json:"id"`
	HostID      string         `json:"hostId"`
	CurrentURL  *string        `json:"currentUrl"`
	Settings    Settings       `json:"settings"`
	CreatedAt   time.Time      `json:"createdAt"`
	MemberCount int            `json:"memberCount"`
	Members     []MemberDetail `json:"members"`
}

type MemberDetail struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsHost   bool   `json:"isHost"`
}

// RoomTable is the mapping from room id to room state.
type RoomTable interface {
	Get(id string) (*Room, bool)
	Create(room *Room) error
	Delete(id string) (*Room, bool)
	ForEach(fn func(room *Room) bool)
	Len() int
}

// ChatHistory keeps a bounded, volatile tail of a room's chat.
type ChatHistory interface {
	Append(ctx context.Context, message *ChatMessage) error
	GetByRoomID(ctx context.Context, roomID string) ([]ChatMessage, error)
	DeleteByRoomID(ctx context.Context, roomID string) error
}

// NewRoom creates a room whose host is its first member.
func NewRoom(id, hostID, hostName string) *Room {
	room := &Room{
		ID:           id,
		HostID:       hostID,
		Settings:     DefaultSettings(),
		CreatedAt:    time.Now(),
		members:      make([]string, 0, 4),
		displayNames: make(map[string]string),
	}
	room.members = append(room.members, hostID)
	room.displayNames[hostID] = hostName

	return room
}

func (r *Room) IsHost(connID string) bool {
	return connID != "" && r.HostID == connID
}

// CheckHost returns ErrNotHost unless connID holds the host role.
func (r *Room) CheckHost(connID string) error {
	if !r.IsHost(connID) {
		return ErrNotHost
	}
	return nil
}

// CheckCapacity returns ErrRoomFull when another member would exceed
// maxMembers. Zero means unlimited.
func (r *Room) CheckCapacity(maxMembers uint) error {
	if maxMembers > 0 && uint(len(r.members)) >= maxMembers {
		return ErrRoomFull
	}
	return nil
}

func (r *Room) HasMember(connID string) bool {
	_, ok := r.displayNames[connID]
	return ok
}

func (r *Room) MemberCount() int {
	return len(r.members)
}

// Members returns member ids in join order.
func (r *Room) Members() []string {
	return slices.Clone(r.members)
}

func (r *Room) DisplayName(connID string) (string, bool) {
	name, ok := r.displayNames[connID]
	return name, ok
}

func (r *Room) AddMember(connID, name string) error {
	if connID == "" {
		return ErrInvalidInput
	}
	if r.HasMember(connID) {
		return ErrAlreadyInRoom
	}

	r.members = append(r.members, connID)
	r.displayNames[connID] = name
	return nil
}

// Rename updates the display name of an existing member.
func (r *Room) Rename(connID, name string) error {
	if !r.HasMember(connID) {
		return ErrMemberNotFound
	}
	r.displayNames[connID] = name
	return nil
}

// LeaveAndAutoPromote removes a member. When the host leaves and members
// remain, the earliest-joined remaining member becomes host and is returned
// as successor.
func (r *Room) LeaveAndAutoPromote(connID string) (successor string, promoted bool, err error) {
	idx := slices.Index(r.members, connID)
	if idx == -1 {
		return "", false, ErrMemberNotFound
	}

	r.members = slices.Delete(r.members, idx, idx+1)
	delete(r.displayNames, connID)

	if r.HostID != connID {
		return "", false, nil
	}

	if len(r.members) == 0 {
		r.HostID = ""
		return "", false, nil
	}

	r.HostID = r.members[0]
	return r.HostID, true, nil
}

func (r *Room) IsEmpty() bool {
	return len(r.members) == 0
}

func (r *Room) SetURL(url string) {
	r.CurrentURL = &url
}

// ChangeURL is the host-only URL update.
func (r *Room) ChangeURL(connID, url string) error {
	if err := r.CheckHost(connID); err != nil {
		return err
	}
	if url == "" {
		return ErrInvalidInput
	}
	r.SetURL(url)
	return nil
}

// ChangeSettings is the host-only settings merge.
func (r *Room) ChangeSettings(connID string, p SettingsPatch) (Settings, error) {
	if err := r.CheckHost(connID); err != nil {
		return r.Settings, err
	}
	return r.UpdateSettings(p)
}

func (r *Room) UpdateSettings(p SettingsPatch) (Settings, error) {
	if err := p.Validate(); err != nil {
		return r.Settings, err
	}
	r.Settings = r.Settings.Merge(p)
	return r.Settings, nil
}

func (r *Room) Snapshot() RoomSnapshot {
	members := make([]MemberDetail, 0, len(r.members))
	for _, id := range r.members {
		members = append(members, MemberDetail{
			ID:       id,
			Username: r.displayNames[id],
			IsHost:   id == r.HostID,
		})
	}

	var currentURL *string
	if r.CurrentURL != nil {
		u := *r.CurrentURL
		currentURL = &u
	}

	return RoomSnapshot{
		ID:          r.ID,
		HostID:      r.HostID,
		CurrentURL:  currentURL,
		Settings:    r.Settings,
		CreatedAt:   r.CreatedAt,
		MemberCount: len(r.members),
		Members:     members,
	}
}
