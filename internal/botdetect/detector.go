// Package botdetect classifies a request's declared client identity
// string into a crawler category and decides which content representation
// it should receive.
package botdetect

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Category buckets a detected bot by purpose.
type Category string

// Known bot categories.
const (
	CategorySearchEngine    Category = "search_engine"
	CategorySEOTool         Category = "seo_tool"
	CategoryAICrawler       Category = "ai_crawler"
	CategorySocialMedia     Category = "social_media"
	CategoryArchiver        Category = "archiver"
	CategorySecurityScanner Category = "security_scanner"
	CategoryGenericBot      Category = "generic_bot"
)

// Classification is the result of one detector evaluation, computed fresh
// per request.
type Classification struct {
	IsBot      bool     `json:"is_bot"`
	Name       string   `json:"bot_name,omitempty"`
	Category   Category `json:"bot_type,omitempty"`
	Confidence float64  `json:"confidence"`
	UserAgent  string   `json:"user_agent"`
}

// knownBot maps a canonical crawler name to the literal substrings
// expected in its user agent string. First match wins.
type knownBot struct {
	name     string
	patterns []string
}

var knownBots = []knownBot{
	// Search engines.
	{"Googlebot", []string{"Googlebot/", "GoogleOther"}},
	{"Google-Extended", []string{"Google-Extended/"}},
	{"Google-CloudVertexBot", []string{"Google-CloudVertexBot/"}},
	{"BingBot", []string{"bingbot/", "BingPreview/"}},

	// OpenAI.
	{"GPTBot", []string{"GPTBot/"}},
	{"ChatGPT-User", []string{"ChatGPT-User/"}},
	{"OAI-SearchBot", []string{"OAI-SearchBot/"}},

	// Anthropic.
	{"ClaudeBot", []string{"ClaudeBot/"}},
	{"Claude-SearchBot", []string{"Claude-SearchBot/"}},
	{"Anthropic-AI", []string{"anthropic-ai"}},
	{"Claude-Web", []string{"Claude-Web"}},

	// Other AI companies.
	{"PerplexityBot", []string{"PerplexityBot/"}},
	{"Cohere-AI", []string{"cohere-ai", "cohere-training-data-crawler"}},
	{"Meta-ExternalAgent", []string{"meta-externalagent"}},
	{"ByteSpider", []string{"Bytespider/"}},
	{"PetalBot", []string{"PetalBot/"}},
	{"Amazonbot", []string{"Amazonbot/"}},
	{"YouBot", []string{"YouBot/"}},
	{"Diffbot", []string{"Diffbot/"}},
	{"AppleBot-Extended", []string{"Applebot-Extended/"}},

	// Social previewers.
	{"FacebookBot", []string{"facebookexternalhit"}},

	// SEO tools.
	{"AhrefsBot", []string{"AhrefsBot/"}},
	{"SemrushBot", []string{"SemrushBot/"}},
	{"MJ12Bot", []string{"MJ12bot/"}},
	{"DotBot", []string{"DotBot/"}},
}

// botPattern is the fallback expression of broad bot-indicating tokens,
// applied case-insensitively when no known bot matched.
var botPattern = regexp.MustCompile(`(?i)(` + strings.Join([]string{
	// Search engine crawlers.
	`googlebot`, `bingbot`, `slurp`, `duckduckbot`, `baiduspider`,
	`yandexbot`, `facebookexternalhit`,
	// SEO tool crawlers.
	`ahrefsbot`, `semrushbot`, `majestic`, `mj12bot`, `dotbot`,
	`screaming frog`, `spyfu`, `serpstatbot`,
	// AI/LLM crawlers.
	`gptbot`, `chatgpt-user`, `oai-searchbot`, `claudebot`,
	`claude-searchbot`, `perplexitybot`, `anthropic-ai`, `claude-web`,
	`openai`, `cohere-ai`, `cohere-training-data-crawler`,
	`google-extended`, `google-cloudvertexbot`, `meta-externalagent`,
	`bytespider`, `petalbot`, `amazonbot`, `youbot`, `diffbot`,
	`applebot-extended`,
	// Generic bot tokens and HTTP client libraries.
	`bot\b`, `crawler`, `spider`, `scraper`, `fetch`, `scan`, `monitor`,
	`check`, `curl`, `wget`, `http`, `python`, `requests`, `urllib`,
	// Social media previewers.
	`twitterbot`, `linkedinbot`, `whatsapp`, `telegrambot`, `slackbot`,
	`discordbot`,
	// Archivers.
	`archive\.org`, `wayback`, `ia_archiver`,
	// Security scanners.
	`nessus`, `nikto`, `sqlmap`, `nmap`,
}, ")|(") + `)`)

// degenerateAgents are identity values treated as definitively bot-like.
var degenerateAgents = map[string]struct{}{
	"":     {},
	"-":    {},
	"null": {},
	"none": {},
}

// Detector classifies client identity strings. It holds no mutable state
// and is safe for concurrent use.
type Detector struct {
	logger *zap.Logger
}

// New constructs a Detector.
func New(logger *zap.Logger) *Detector {
	return &Detector{logger: logger}
}

// Classify inspects a user agent string. Matching order: curated
// known-bot substrings (confidence 0.95), then the fallback pattern
// (confidence 0.8), then the degenerate/too-short conservative default.
func (d *Detector) Classify(userAgent string) Classification {
	trimmed := strings.TrimSpace(userAgent)
	lower := strings.ToLower(trimmed)

	if _, ok := degenerateAgents[lower]; ok {
		return Classification{
			IsBot:      true,
			Name:       "Unknown",
			Category:   CategoryGenericBot,
			Confidence: 1.0,
			UserAgent:  userAgent,
		}
	}

	for _, kb := range knownBots {
		for _, p := range kb.patterns {
			if strings.Contains(lower, strings.ToLower(p)) {
				return Classification{
					IsBot:      true,
					Name:       kb.name,
					Category:   categorize(kb.name),
					Confidence: 0.95,
					UserAgent:  userAgent,
				}
			}
		}
	}

	if m := botPattern.FindString(lower); m != "" {
		return Classification{
			IsBot:      true,
			Name:       titleCase(m),
			Category:   categorize(m),
			Confidence: 0.8,
			UserAgent:  userAgent,
		}
	}

	// Suspiciously short identities get the same conservative default as
	// the degenerate literals: when in doubt, serve plain text.
	if len(lower) < 10 {
		return Classification{
			IsBot:      true,
			Name:       "Unknown",
			Category:   CategoryGenericBot,
			Confidence: 1.0,
			UserAgent:  userAgent,
		}
	}

	return Classification{IsBot: false, UserAgent: userAgent}
}

// categorize buckets a matched bot identifier by keyword.
func categorize(identifier string) Category {
	id := strings.ToLower(identifier)
	switch {
	case containsAny(id, "google", "bing", "yahoo", "slurp", "duckduck", "baidu", "yandex"):
		// AI-purposed Google agents are re-bucketed below; plain Google
		// identifiers are search.
		if containsAny(id, "google-extended", "google-cloudvertex") {
			return CategoryAICrawler
		}
		return CategorySearchEngine
	case containsAny(id, "ahrefs", "semrush", "majestic", "mj12", "dotbot", "screaming frog", "spyfu", "serpstat"):
		return CategorySEOTool
	case containsAny(id,
		"gpt", "chatgpt", "oai-search", "claude", "perplexity", "openai",
		"anthropic", "cohere", "meta-external", "bytespider", "petalbot",
		"amazonbot", "youbot", "diffbot", "applebot-extended"):
		return CategoryAICrawler
	case containsAny(id, "facebook", "twitter", "linkedin", "whatsapp", "telegram", "slack", "discord"):
		return CategorySocialMedia
	case containsAny(id, "archive", "wayback", "ia_archiver"):
		return CategoryArchiver
	case containsAny(id, "nessus", "nikto", "sqlmap", "nmap"):
		return CategorySecurityScanner
	default:
		return CategoryGenericBot
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

// plainTextCategories receive raw markdown instead of the rendered page.
// Social previewers and security scanners are bots but still get the
// rendered form; that asymmetry is intentional policy.
var plainTextCategories = map[Category]struct{}{
	CategorySearchEngine: {},
	CategorySEOTool:      {},
	CategoryAICrawler:    {},
	CategoryArchiver:     {},
}

// ServePlainText decides the content representation for a classification.
// Degenerate identities (confidence 1.0) also get plain text: when the
// client is unknown, the safe representation is the raw one.
func (d *Detector) ServePlainText(c Classification) bool {
	if !c.IsBot {
		return false
	}
	if c.Confidence >= 1.0 {
		return true
	}
	_, ok := plainTextCategories[c.Category]
	return ok
}

// LogAccess records a content-read classification for monitoring. It has
// no functional impact.
func (d *Detector) LogAccess(c Classification, slug string, servedPlainText bool) {
	if !c.IsBot {
		return
	}
	d.logger.Info("bot access",
		zap.String("bot_name", c.Name),
		zap.String("bot_type", string(c.Category)),
		zap.String("slug", slug),
		zap.Float64("confidence", c.Confidence),
		zap.Bool("served_plain_text", servedPlainText),
	)
}
