package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultSessionName = "tg_assistant_session"
	DefaultDBPath      = "messages.db"

	DefaultBotMaxMessageLength = 4096 // Telegram's maximum message length

	DefaultClassifierBackend     = "openai"
	DefaultClassifierURL         = "https://api.proxyapi.ru/openai/v1/chat/completions"
	DefaultClassifierModel       = "gpt-4o-mini"
	DefaultClassifierTemperature = 0.3
	DefaultClassifierTimeout     = 60 * time.Second
	DefaultClassifierBatchSize   = 200

	DefaultBackfillLookbackHours = 24
	DefaultBackfillFolderID      = 1 // Telegram's archive folder

	DefaultIngestQueueSize = 256
)

// DefaultSystemInstruction restricts the classifier to the two accepted roles
// and to a strict JSON answer.
const DefaultSystemInstruction = `You are a job posting filter. You receive a list of messages, each with an id, text and link.
Keep only job openings for: frontend developer (JS/TS, React, Vue, Next, Angular, HTML/CSS) or prompt engineer / LLM engineer.
Exclude everything else: news, demos, discussions, resumes and self-introductions, sales, other roles.
Answer with JSON only: {"matches":[{"id": <int>, "summary": "short summary"}]}.
If nothing matches, return {"matches":[]}.
Do not invent ids, use only the ones provided. No extra text.`

// DefaultPromptHeader precedes the rendered batch in the user message.
const DefaultPromptHeader = `Here is a list of messages in the format: <id>: <text>\nLink: <url>.
Select only frontend developer job openings (JS/TS, React/Vue/Next/Angular, HTML/CSS) or prompt engineer / LLM engineer openings. Ignore resumes, news, meetups, sales and other roles.
Return strictly JSON: {"matches":[{"id": <int>, "summary": "short summary"}]}.
If nothing matches, return {"matches":[]}.

Messages:

`

// DefaultTasks lists the scheduled tasks and their default cron expressions.
var DefaultTasks = map[string]TaskConfig{
	"backfill":        {Enabled: true, Schedule: "0 0 * * * *"},
	"classify":        {Enabled: false, Schedule: "0 0 9 * * *"},
	"sql_maintenance": {Enabled: true, Schedule: "0 0 3 * * 0"},
}

// DefaultMessages are the bot replies used when none are configured.
var DefaultMessages = MessagesConfig{
	Welcome:              "👋 I collect messages from your archived channels and look for matching job postings. Send /find to search the backlog.",
	Help:                 "/find - search unprocessed messages for matching vacancies\n/stats - show stored message counts\n/backfill - scan archived channels now\n/help - show this message",
	ErrorUnauthorized:    "🚫 Access denied. Please contact the administrator.",
	ErrorGeneral:         "❌ An error occurred. Please try again later.",
	Searching:            "🔎 Looking for matching vacancies...",
	Busy:                 "⏳ A search is already running, please wait for it to finish.",
	NothingToDo:          "No new unprocessed messages.",
	NothingFound:         "No matching vacancies found.",
	DigestHeader:         "Found:",
	ClassifierFailed:     "🤖 Could not get a response from the classifier.",
	ClassifierUnparsable: "🤖 Could not parse the classifier response (not JSON).",
	StatsFmt:             "Stored messages: %d\nUnprocessed: %d",
	BackfillStarted:      "📥 Scanning archived channels...",
	BackfillDoneFmt:      "📥 Collected %d messages from archived channels.",
	BackfillFailed:       "❌ Archived channel scan failed.",
	BackfillBusy:         "⏳ A scan is already running, please wait for it to finish.",
}
