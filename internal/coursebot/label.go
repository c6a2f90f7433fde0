package coursebot

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
)

// CountLabel addresses one counting configuration. An empty Channel is the
// global scope.
type CountLabel struct {
	Channel string
	Regex   *string
	Media   *chat.MediaType
}

// Encode returns a deterministic, delimiter safe representation.
func (l CountLabel) Encode() string {
	var b strings.Builder
	b.WriteString("count")
	writePart(&b, "c", &l.Channel)
	writePart(&b, "r", l.Regex)
	if l.Media != nil {
		m := strconv.Itoa(int(*l.Media))
		writePart(&b, "m", &m)
	} else {
		writePart(&b, "m", nil)
	}
	return b.String()
}

// Filter drops the channel scope.
func (l CountLabel) Filter() CountLabel {
	return CountLabel{Regex: l.Regex, Media: l.Media}
}

// InChannel returns the same filter scoped to channel.
func (l CountLabel) InChannel(channel string) CountLabel {
	return CountLabel{Channel: channel, Regex: l.Regex, Media: l.Media}
}

func writePart(b *strings.Builder, tag string, v *string) {
	b.WriteByte('|')
	b.WriteString(tag)
	if v == nil {
		b.WriteByte('-')
		return
	}
	b.WriteString(strconv.Itoa(len(*v)))
	b.WriteByte(':')
	b.WriteString(*v)
}

// countRule is the stored form of a count filter.
type countRule struct {
	Regex *string         `json:"regex,omitempty"`
	Media *chat.MediaType `json:"media,omitempty"`
}

func (r countRule) label() CountLabel {
	return CountLabel{Regex: r.Regex, Media: r.Media}
}

func (r countRule) encode() string {
	data, _ := json.Marshal(r)
	return string(data)
}

func decodeRule(s string) (countRule, error) {
	var r countRule
	err := json.Unmarshal([]byte(s), &r)
	return r, err
}

// scope joins names into a single collision free identifier.
func scope(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}
