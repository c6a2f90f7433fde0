package coursebot

import (
	"time"

	"github.com/MrSnakeDoc/coursebots/internal/db"
)

// Document types.
const (
	TypeSession    = "session"
	TypeBot        = "bot"
	TypeChannel    = "channel"
	TypeSurvey     = "survey"
	TypeVoteAnswer = "voteAnswer"
)

// Bot fields.
const (
	KeyBotID                 = "id"
	KeyBotName               = "name"
	KeyBotToken              = "token"
	KeyBotSecret             = "secret"
	KeyBotLastSeenMsgTime    = "lastSeenMsgTime"
	KeyBotCalculationTrigger = "calculationTrigger"
	KeyBotTipTrigger         = "tipTrigger"
)

// Other document fields.
const (
	KeySessionBot = "bot"

	KeyChannelName = "name"
	KeyChannelID   = "id"

	KeySurveyQuestion = "question"
	KeySurveyAnswers  = "answers"
	KeySurveyBot      = "bot"
	KeySurveyChannel  = "channel"

	KeyVoteAnswerIndex = "answerIndex"
)

// Lists and trees.
const (
	ListBotChannels    = "botChannels"    // name: bot, values: channels in join order
	ListBotCountRules  = "botCountRules"  // name: bot, values: encoded count filters
	ListChannelSurveys = "channelSurveys" // name: bot+channel scope, values: survey ids

	TreeAllBots     = "allBots"     // name: "", key: (-id, bot)
	TreeChannelBots = "channelBots" // name: channel, key: (-id, bot)
	TreeActivity    = "activity"    // name: bot+channel scope, key: (messages, user)
	TreeTipLedger   = "tipLedger"   // name: bot+channel scope, key: (balance, user)
)

// Metadata counters.
const (
	LabelMetadata    = "__metadata"
	KeyLastBotID     = "lastBotId"
	KeyLastChannelID = "lastChannelId"
	KeyLastSurveyID  = "lastSurveyId"

	LabelActivity = "activity"
	LabelTips     = "tips"
	LabelSurvey   = "survey"
)

// InitialBalance is what every channel member owns before the first tip.
const InitialBalance int64 = 1000

// BotModel is the stored view of a bot.
type BotModel struct {
	ID                 int64
	Name               string
	Token              string
	Secret             string
	LastSeen           *time.Time
	CalculationTrigger *string
	TipTrigger         *string
}

func botFromRecord(r *db.Record) *BotModel {
	b := &BotModel{
		ID:                 r.Int64(KeyBotID),
		Name:               r.String(KeyBotName),
		Token:              r.String(KeyBotToken),
		Secret:             r.String(KeyBotSecret),
		CalculationTrigger: r.StringPtr(KeyBotCalculationTrigger),
		TipTrigger:         r.StringPtr(KeyBotTipTrigger),
	}
	if r.Has(KeyBotLastSeenMsgTime) {
		t := time.Unix(0, r.Int64(KeyBotLastSeenMsgTime))
		b.LastSeen = &t
	}
	return b
}

// ChannelModel is the bot layer's bookkeeping of a channel.
type ChannelModel struct {
	Name string
	ID   int64
}

// SurveyModel is a multiple choice question asked by one bot in one channel.
type SurveyModel struct {
	ID       string
	Question string
	Answers  []string
	Bot      string
	Channel  string
}

func surveyFromRecord(r *db.Record) *SurveyModel {
	return &SurveyModel{
		ID:       r.ID,
		Question: r.String(KeySurveyQuestion),
		Answers:  r.Strings(KeySurveyAnswers),
		Bot:      r.String(KeySurveyBot),
		Channel:  r.String(KeySurveyChannel),
	}
}
