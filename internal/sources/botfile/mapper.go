package botfile

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/coursebots/internal/chat"
	"github.com/MrSnakeDoc/coursebots/internal/coursebot"
)

// Mapper converts a bots file to bot definitions
type Mapper struct{}

// NewMapper creates a new mapper instance
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapBots validates config and converts it. Names must be unique, channels
// must be valid channel names and each count needs a regex or a media type.
func (m *Mapper) MapBots(config Config) ([]coursebot.Definition, error) {
	defs := make([]coursebot.Definition, 0, len(config.Bots))
	seen := make(map[string]bool, len(config.Bots))

	for i, entry := range config.Bots {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return nil, fmt.Errorf("bot #%d: missing name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("bot %s: defined twice", name)
		}
		seen[name] = true

		def := coursebot.Definition{
			Name:               name,
			CalculationTrigger: optional(entry.CalculationTrigger),
			TipTrigger:         optional(entry.TipTrigger),
		}
		for _, ch := range entry.Channels {
			if !chat.ValidChannel(ch) {
				return nil, fmt.Errorf("bot %s: invalid channel %q", name, ch)
			}
			def.Channels = append(def.Channels, ch)
		}

		for j, c := range entry.Count {
			count, err := mapCount(c)
			if err != nil {
				return nil, fmt.Errorf("bot %s: count #%d: %w", name, j, err)
			}
			def.Counts = append(def.Counts, count)
		}
		defs = append(defs, def)
	}

	return defs, nil
}

func mapCount(c CountEntry) (coursebot.CountDefinition, error) {
	var out coursebot.CountDefinition
	if c.Regex == nil && c.Media == "" {
		return out, fmt.Errorf("needs a regex or a media type")
	}
	if c.Channel != "" {
		if !chat.ValidChannel(c.Channel) {
			return out, fmt.Errorf("invalid channel %q", c.Channel)
		}
		out.Channel = optional(c.Channel)
	}
	out.Regex = c.Regex
	if c.Media != "" {
		media, err := chat.ParseMediaType(c.Media)
		if err != nil {
			return out, err
		}
		out.Media = &media
	}
	return out, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
