package botfile

// CountEntry is one count filter of a bot. Channel is optional; without it
// the filter counts globally.
type CountEntry struct {
	Channel string  `yaml:"channel"`
	Regex   *string `yaml:"regex"`
	Media   string  `yaml:"media"`
}

// BotEntry describes one bot
type BotEntry struct {
	Name               string       `yaml:"name"`
	Channels           []string     `yaml:"channels"`
	CalculationTrigger string       `yaml:"calculation_trigger"`
	TipTrigger         string       `yaml:"tip_trigger"`
	Count              []CountEntry `yaml:"count"`
}

// Config is the root structure of the bots file:
//
//	bots:
//	  - name: helper
//	    channels: ["#lobby"]
//	    calculation_trigger: calc
//	    count:
//	      - regex: "hello.*"
//	        media: text
type Config struct {
	Bots []BotEntry `yaml:"bots"`
}
