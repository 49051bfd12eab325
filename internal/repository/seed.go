package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// execer is the slice of pgx both *pgxpool.Pool and pgx.Tx implement that
// seeding needs, so the whole corpus can be loaded in one transaction.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Seeder loads the baseline conversation corpus: allowed topics, redirect
// templates, response variants, and filler phrases. Every insert is
// idempotent, so seeding runs unconditionally at startup.
type Seeder struct {
	db     execer
	logger *zap.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(db execer, logger *zap.Logger) *Seeder {
	return &Seeder{db: db, logger: logger}
}

// Seed inserts the whole corpus, skipping rows that already exist.
func (s *Seeder) Seed(ctx context.Context) error {
	ctx, cancel := WithTransactionTimeout(ctx)
	defer cancel()

	if err := s.seedTopics(ctx); err != nil {
		return fmt.Errorf("seeding topics: %w", err)
	}
	if err := s.seedRedirects(ctx); err != nil {
		return fmt.Errorf("seeding redirects: %w", err)
	}
	if err := s.seedResponses(ctx); err != nil {
		return fmt.Errorf("seeding responses: %w", err)
	}
	if err := s.seedFillers(ctx); err != nil {
		return fmt.Errorf("seeding fillers: %w", err)
	}

	s.logger.Info("conversation corpus seeded",
		zap.Int("topics", len(seedTopics)),
		zap.Int("redirects", len(seedRedirects)),
		zap.Int("responses", len(seedResponses)),
		zap.Int("fillers", len(seedFillers)),
	)
	return nil
}

type topicSeed struct {
	name     string
	category string
	keywords []string
	priority int
	isCore   bool
}

var seedTopics = []topicSeed{
	{"website", "core", []string{"website", "web", "site", "webpage", "homepage", "domain", "online presence"}, 10, true},
	{"web design", "core", []string{"design", "redesign", "layout", "modern look", "template"}, 9, true},
	{"seo", "core", []string{"seo", "google", "search", "ranking", "found online", "first page"}, 9, true},
	{"pricing", "business", []string{"price", "cost", "expensive", "cheap", "budget", "how much", "quote", "invoice"}, 9, false},
	{"meeting", "business", []string{"meeting", "appointment", "schedule", "tomorrow", "next week", "call back", "calendar"}, 9, false},
	{"ecommerce", "core", []string{"eshop", "e-shop", "online store", "sell online", "orders", "cart"}, 8, true},
	{"business", "business", []string{"company", "business", "customers", "clients", "services", "revenue"}, 8, false},
	{"marketing", "core", []string{"marketing", "advertising", "campaign", "social media", "facebook", "instagram"}, 7, true},
	{"hosting", "technical", []string{"hosting", "server", "domain name", "email address", "ssl"}, 6, false},
	{"references", "business", []string{"references", "portfolio", "examples", "previous work", "who have you"}, 6, false},
	{"timeline", "business", []string{"how long", "deadline", "when would", "delivery", "finished"}, 6, false},
	{"maintenance", "technical", []string{"maintenance", "updates", "support", "fix", "broken"}, 5, false},
	{"mobile", "technical", []string{"mobile", "phone version", "responsive", "tablet"}, 5, false},
	{"content", "core", []string{"content", "photos", "texts", "copywriting", "translation"}, 5, false},
	{"competition", "business", []string{"competitor", "competition", "rivals", "other companies"}, 5, false},
	{"contact", "business", []string{"email", "phone number", "send me", "contact", "information"}, 4, false},
	{"company info", "business", []string{"who are you", "your company", "where are you", "how long have you"}, 4, false},
	{"legal", "business", []string{"contract", "terms", "gdpr", "privacy"}, 3, false},
	{"cancellation", "business", []string{"cancel", "stop the service", "terminate"}, 3, false},
	{"technology", "technical", []string{"wordpress", "cms", "code", "programming", "platform"}, 3, false},
	{"results", "business", []string{"statistics", "analytics", "visitors", "traffic", "conversion"}, 3, false},
}

func (s *Seeder) seedTopics(ctx context.Context) error {
	query := `
		INSERT INTO allowed_topics (name, category, keywords, priority, is_core)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING`

	for _, t := range seedTopics {
		if _, err := s.db.Exec(ctx, query, t.name, t.category, t.keywords, t.priority, t.isCore); err != nil {
			return fmt.Errorf("topic %q: %w", t.name, err)
		}
	}
	return nil
}

type redirectSeed struct {
	category       string
	acknowledgment string
	direct         string
	soft           string
}

var seedRedirects = []redirectSeed{
	{"weather", "Yes, quite the weather today", "But back to your business - do you have a website?", "Anyway, while I have you, how is your company doing online?"},
	{"weather", "True, it has been like that all week", "Speaking of which, a website works in any weather. Do you have one?", "Let me get back to why I called though."},
	{"sports", "I missed that game, to be honest", "But tell me, how do customers find your company today?", "Back to your business for a second."},
	{"politics", "I'd rather not get into politics on a work call", "What I can help with is your web presence - do you have a site?", "Let me stick to what I know, websites."},
	{"health", "I'm sorry to hear that, I hope it gets better soon", "I'll be brief then - does your company have a website?", "I won't keep you long in that case."},
	{"personal", "That sounds lovely", "Back to business though - does your company have a website?", "I'll let you get back to that in a minute."},
	{"complaint", "I understand, that must be frustrating", "Maybe I can help with one thing at least - your web presence. Do you have a site?", "Let me see if I can help with the part I know."},
	{"smalltalk", "Doing well, thanks for asking", "I'll get to the point - does your company have a website?", "Let me not waste your time and get to it."},
	{"general", "I hear you", "But back to business - do you have a website?", "Anyway, the reason I'm calling is your web presence."},
	{"general", "Right, fair enough", "What I wanted to ask though - how do customers find you online?", "Back to my question, if I may."},
}

func (s *Seeder) seedRedirects(ctx context.Context) error {
	query := `
		INSERT INTO redirect_templates (category, acknowledgment, redirect_direct, redirect_soft)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category, acknowledgment) DO NOTHING`

	for _, r := range seedRedirects {
		if _, err := s.db.Exec(ctx, query, r.category, r.acknowledgment, r.direct, r.soft); err != nil {
			return fmt.Errorf("redirect %q: %w", r.acknowledgment, err)
		}
	}
	return nil
}

type responseSeed struct {
	stage       string
	subCategory string
	situation   string
	text        string
	alt1        string
	alt2        string
	strategy    string
	tone        string
	urgency     int
	expected    string
	nextStep    string
}

var seedResponses = []responseSeed{
	// Intro
	{"intro", "value_first", "cold open",
		"This is Petra from Moravia Webworks. We build websites that bring small companies new customers. Do I catch you at an okay moment?",
		"Petra here, from Moravia Webworks. We help companies like yours get found online. Got a quick minute?",
		"",
		"permission_open", "friendly", 1, "yes or busy", "ask about website"},
	{"intro", "value_first", "cold open, direct",
		"Hi, Petra from Moravia Webworks. I'll be quick - we get local companies new customers through their website. Can I ask you one thing?",
		"", "",
		"pattern_interrupt", "direct", 2, "go ahead", "ask about website"},
	{"intro", "value_first", "referral-style open",
		"This is Petra from Moravia Webworks. We work with several companies in your area on their websites, and I wanted to ask how you handle yours.",
		"", "",
		"social_proof", "confident", 1, "we have one or we don't", "ask about website"},

	// Discovery
	{"discovery", "web_check", "asking about the asset",
		"Does your company have a website at the moment?",
		"Tell me, is your company on the web today?",
		"Quick question - do you have a website?",
		"qualify", "friendly", 1, "yes or no", "branch on answer"},
	{"discovery", "web_check", "asking how customers arrive",
		"How do new customers usually find you - referrals, or do they find you online?",
		"", "",
		"qualify", "curious", 1, "channel answer", "branch on answer"},
	{"discovery", "have_web", "they have a site",
		"That's a good start. When was it last updated? Most sites older than three years actually lose customers.",
		"Great. And are you happy with how many inquiries it brings you?",
		"",
		"create_doubt", "confident", 2, "age or satisfaction", "pitch value"},
	{"discovery", "have_web", "they have a site, probe results",
		"Nice. And does it actually bring you business, or is it more of a business card?",
		"", "",
		"create_doubt", "direct", 2, "results answer", "pitch value"},
	{"discovery", "no_web", "no site",
		"Then you're likely invisible to most people searching for your services. Nine out of ten customers check the web first.",
		"That's actually common, and it's fixable fast. A simple site can be live in two weeks.",
		"",
		"urgency", "factual", 3, "interest or objection", "pitch value"},
	{"discovery", "no_web", "no site, soft",
		"Understood. Out of interest, where do your customers come from today?",
		"", "",
		"qualify", "curious", 1, "channel answer", "pitch value"},

	// Value
	{"value", "seo_benefit", "pitch search visibility",
		"With good search visibility, people looking for your services find you first, not your competitors. That's typically a few dozen new inquiries a month.",
		"Being on the first page of search results is like having a shop on the main square.",
		"",
		"paint_picture", "confident", 2, "interest", "propose meeting"},
	{"value", "seo_benefit", "pitch around-the-clock",
		"A website sells for you around the clock. Even on weekends, people can find you, see your work, and leave a contact.",
		"", "",
		"paint_picture", "enthusiastic", 2, "interest", "propose meeting"},
	{"value", "roi_benefit", "pitch payback",
		"Most of our clients see the site pay for itself within a few months - one or two new customers usually cover it.",
		"Think of it as hiring a salesperson who never sleeps and costs a fraction of a salary.",
		"",
		"roi_math", "factual", 2, "interest or price question", "propose meeting"},
	{"value", "competitor_advantage", "pitch against rivals",
		"Your competitors who show up in search are taking customers that could be yours. Every month without a site works in their favor.",
		"We checked - several companies in your field already rank well. There's still room to get ahead of them.",
		"",
		"fear_of_loss", "urgent", 3, "interest", "propose meeting"},

	// Objections
	{"objection", "no_time", "caller is busy",
		"I understand, I'll be brief. Just one question and I'll let you go - does your company have a website?",
		"Of course. Would it be better if I called tomorrow, or can I take thirty seconds now?",
		"",
		"shrink_ask", "calm", 2, "ok or callback", "web check"},
	{"objection", "no_time", "caller wants to end",
		"Fair enough. Let me send you a short summary by email and call you at a better time. When suits you?",
		"", "",
		"schedule_callback", "calm", 2, "time proposal", "schedule callback"},
	{"objection", "no_money", "price concern",
		"I understand budget matters. A basic site costs less than most people expect, and it usually pays for itself within months.",
		"That's exactly why we start small. You'd be surprised what the entry option costs.",
		"",
		"reframe_investment", "empathetic", 2, "price question", "propose meeting"},
	{"objection", "no_money", "price question",
		"It depends on the scope, which is why a short meeting makes sense - fifteen minutes and you get an exact number, no obligation.",
		"Rather than guess a number, let me show you options. The smallest package surprises most people.",
		"",
		"defer_to_meeting", "confident", 2, "meeting interest", "propose meeting"},
	{"objection", "satisfied", "has a supplier or site",
		"That's good to hear. A second opinion costs nothing though - we often find quick wins even on well-kept sites.",
		"Understood. If I could show you two things your current setup is missing, would that be worth fifteen minutes?",
		"",
		"second_opinion", "calm", 1, "maybe", "propose audit"},
	{"objection", "need_consultation", "must ask someone",
		"Of course. What I can do is send a one-page summary you can share, and call back once you've talked it over. Does that work?",
		"Makes sense. Could we set a short call with both of you? It saves the retelling.",
		"",
		"arm_the_champion", "calm", 1, "agreement", "schedule callback"},
	{"objection", "no_interest", "soft refusal",
		"I hear that a lot, and it's usually because websites sound like a big project. Ours aren't. Can I ask just one question?",
		"Understood. Out of curiosity - is it the timing, or websites in general?",
		"",
		"isolate_objection", "empathetic", 2, "clarification", "web check"},
	{"objection", "no_interest", "firm refusal",
		"Alright, I won't push. Let me leave you our contact in case it becomes relevant. Thanks for your time, have a nice day.",
		"", "",
		"graceful_exit", "calm", 1, "goodbye", "end call"},

	// Closing
	{"closing", "direct_close", "propose concrete slot",
		"Let's set up a short meeting. Would tomorrow at ten work, or is the afternoon better?",
		"How about Tuesday at ten? Fifteen minutes, and you'll have a concrete proposal in hand.",
		"",
		"alternative_close", "direct", 3, "slot choice", "confirm meeting"},
	{"closing", "direct_close", "confirm agreed meeting",
		"Perfect, I'm noting it down. You'll get a confirmation by email shortly. Looking forward to it, have a nice day!",
		"", "",
		"confirm", "enthusiastic", 1, "goodbye", "end call"},
	{"closing", "soft_close", "hesitant caller",
		"No big commitment - fifteen minutes over the phone, you'll see examples and numbers, and then you decide. Fair?",
		"Let's do this: I'll send examples of our work today, and we'll talk for ten minutes on Thursday. If it's not for you, no hard feelings.",
		"",
		"lower_stakes", "friendly", 2, "agreement", "confirm meeting"},
	{"closing", "soft_close", "callback close",
		"Then let me call you next week when things calm down. Is Monday morning okay?",
		"", "",
		"schedule_callback", "calm", 1, "time agreement", "schedule callback"},
}

func (s *Seeder) seedResponses(ctx context.Context) error {
	query := `
		INSERT INTO response_templates (
			stage, sub_category, situation, text, alternative_1, alternative_2,
			strategy, tone, urgency_level, expected_reply, next_step
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, $11)
		ON CONFLICT (stage, sub_category, text) DO NOTHING`

	for _, r := range seedResponses {
		_, err := s.db.Exec(ctx, query,
			r.stage, r.subCategory, r.situation, r.text, r.alt1, r.alt2,
			r.strategy, r.tone, r.urgency, r.expected, r.nextStep,
		)
		if err != nil {
			return fmt.Errorf("response %q: %w", r.situation, err)
		}
	}
	return nil
}

type fillerSeed struct {
	kind      string
	phrase    string
	frequency string
	score     float64
}

var seedFillers = []fillerSeed{
	{"filler", "Well", "high", 0.9},
	{"filler", "You know", "high", 0.8},
	{"filler", "Look", "high", 0.8},
	{"filler", "Honestly", "medium", 0.7},
	{"filler", "Actually", "high", 0.8},
	{"filler", "Right", "medium", 0.7},
	{"transition", "Anyway", "medium", 0.7},
	{"transition", "That said", "low", 0.6},
	{"transition", "Speaking of which", "low", 0.6},
	{"agreement", "Exactly", "medium", 0.8},
	{"agreement", "Sure", "high", 0.9},
	{"agreement", "Of course", "medium", 0.8},
	{"empathy", "I understand", "high", 0.9},
	{"empathy", "I hear you", "medium", 0.8},
	{"empathy", "Fair enough", "medium", 0.8},
}

func (s *Seeder) seedFillers(ctx context.Context) error {
	query := `
		INSERT INTO filler_phrases (type, phrase, frequency, natural_score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phrase) DO NOTHING`

	for _, f := range seedFillers {
		if _, err := s.db.Exec(ctx, query, f.kind, f.phrase, f.frequency, f.score); err != nil {
			return fmt.Errorf("filler %q: %w", f.phrase, err)
		}
	}
	return nil
}
