// Package chat is the boundary to the chat service bots live on.
package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotAuthorized = errors.New("chat: user not authorized")
	ErrNoSuchEntity  = errors.New("chat: no such entity")
	ErrNameFormat    = errors.New("chat: invalid channel name")
)

// MediaType tags the payload of a message. The numeric value is stable and
// takes part in stored counter labels.
type MediaType int

const (
	MediaText MediaType = iota
	MediaFile
	MediaPicture
	MediaSticker
	MediaLocation
	MediaReference
	MediaAudio
)

var mediaNames = [...]string{"TEXT", "FILE", "PICTURE", "STICKER", "LOCATION", "REFERENCE", "AUDIO"}

func (m MediaType) String() string {
	if m < 0 || int(m) >= len(mediaNames) {
		return fmt.Sprintf("MediaType(%d)", int(m))
	}
	return mediaNames[m]
}

// ParseMediaType accepts the upper or lower case name.
func ParseMediaType(s string) (MediaType, error) {
	for i, n := range mediaNames {
		if strings.EqualFold(n, s) {
			return MediaType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown media type %q", s)
}

// Message is an immutable chat message.
type Message struct {
	ID       int64
	Media    MediaType
	Contents []byte
	Created  time.Time
}

// MessageFactory builds messages with ids and creation times.
type MessageFactory interface {
	Create(ctx context.Context, media MediaType, contents []byte) (Message, error)
}

// ListenerCallback receives every message delivered to a user. source is
// "#channel@sender" for channel messages and the sender name for private ones.
type ListenerCallback func(ctx context.Context, source string, msg Message) error

// ListenerID identifies a registered listener.
type ListenerID uint64

// CourseApp is the chat service. Every call but Login is made on behalf of
// the user owning token.
type CourseApp interface {
	Login(ctx context.Context, username, password string) (token string, err error)
	ChannelJoin(ctx context.Context, token, channel string) error
	ChannelPart(ctx context.Context, token, channel string) error
	ChannelKick(ctx context.Context, token, channel, username string) error
	ChannelSend(ctx context.Context, token, channel string, msg Message) error
	IsUserInChannel(ctx context.Context, token, channel, username string) (bool, error)
	AddListener(ctx context.Context, token string, cb ListenerCallback) (ListenerID, error)
	RemoveListener(ctx context.Context, token string, id ListenerID) error
}

var channelName = regexp.MustCompile(`^#[#_A-Za-z0-9]*$`)

// ValidChannel reports whether name is a legal channel name.
func ValidChannel(name string) bool {
	return channelName.MatchString(name)
}

// ChannelSource builds the listener source of a channel message.
func ChannelSource(channel, sender string) string {
	return channel + "@" + sender
}

// SplitSource parses a listener source. ok is false for private messages or
// malformed sources.
func SplitSource(source string) (channel, sender string, ok bool) {
	i := strings.IndexByte(source, '@')
	if i < 0 {
		return "", "", false
	}
	channel, sender = source[:i], source[i+1:]
	if !ValidChannel(channel) || sender == "" {
		return "", "", false
	}
	return channel, sender, true
}
