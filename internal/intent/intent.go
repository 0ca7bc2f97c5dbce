// Package intent classifies questions with an ordered keyword table. The
// first matching rule decides the chunk type answers are drawn from, or
// blocks the question outright.
package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/fundqa/internal/model"
)

// Tag names a question intent.
type Tag string

const (
	TagAdvice          Tag = "advice"
	TagHoldings        Tag = "holdings"
	TagFundSize        Tag = "fund_size"
	TagNAV             Tag = "nav"
	TagSIP             Tag = "sip_exit_load"
	TagExpense         Tag = "expense"
	TagPerformance     Tag = "performance"
	TagRisk            Tag = "risk"
	TagCharacteristics Tag = "characteristics"
	TagPlatform        Tag = "platform"
	TagGeneral         Tag = "general"
)

// Intent is the routing decision for one question.
type Intent struct {
	Tag Tag
	// ChunkType filters retrieved chunks; empty means no filter.
	ChunkType model.ChunkType
	// Blocked questions get the refusal reply and no retrieval.
	Blocked bool
	// SingleAnswer keeps only the best filtered chunk.
	SingleAnswer bool
}

var (
	// adviceTerms are stems; any word starting with one matches.
	adviceTerms = []string{
		"invest", "buy", "sell", "hold", "recommend", "suggest", "allocat",
		"portfolio", "should i", "advice", "advis", "top", "best", "rank",
		"outperform", "better than", "worse than", "compar",
	}
	// factualTerms contain advice stems but ask for a published figure.
	factualTerms = []string{
		"minimum investment", "min investment", "minimum additional investment",
		"lumpsum investment", "lump sum investment", "investment amount",
	}
	holdingsTerms = []string{
		"holding", "holdings", "top holdings", "stock", "stocks", "shares",
		"companies", "constituents", "invested in",
	}
	fundSizeTerms = []string{"fund size", "aum", "assets under management", "corpus"}
	navTerms      = []string{"nav", "net asset value", "current nav", "today nav", "current price", "price"}
	sipTerms      = []string{
		"sip", "min sip", "minimum sip", "minimum investment", "exit load",
		"exit charge", "redemption charge", "lumpsum", "lump sum",
	}
	expenseTerms = []string{
		"expense ratio", "expense", "expenses", "cost", "costs", "fee", "fees",
		"charges", "ter", "stamp duty",
	}
	performanceTerms = []string{
		"return", "returns", "performance", "performed", "cagr", "p/e", "pe ratio",
		"p/e ratio", "p/b", "pb ratio", "p/b ratio", "annualised", "annualized",
		"category average",
	}
	riskTerms = []string{
		"risk", "risky", "riskometer", "volatility", "volatile", "sharpe",
		"sortino", "alpha", "beta", "benchmark", "standard deviation",
	}
	characteristicsTerms = []string{
		"fund manager", "manager", "managed by", "manages", "lock-in", "lock in",
		"lockin", "scheme type", "fund type", "sub category", "sub-category",
		"category", "type of fund", "is it elss",
	}
	platformTerms = []string{
		"statement", "statements", "account statement", "download",
		"capital gains", "transaction history", "report", "reports",
	}

	greetingTerms = []string{
		"hi", "hello", "hey", "greetings", "good morning", "good afternoon",
		"good evening", "what's up", "howdy", "namaste",
	}
	definitionPhrases = []string{"what is", "what are", "what does", "define", "meaning of", "explain"}
	glossaryTerms     = []string{
		"nav", "net asset value", "aum", "expense ratio", "p/e ratio", "pe ratio",
		"p/b ratio", "pb ratio", "cagr", "sharpe", "sharpe ratio", "sortino",
		"beta", "alpha", "exit load", "sip", "riskometer", "benchmark", "elss",
		"lock-in", "stamp duty", "mutual fund", "index fund",
	}
	// generalTerms trigger the definition reply when retrieval finds
	// nothing close.
	generalTerms = []string{
		"what is", "what are", "define", "nav", "aum", "expense ratio",
		"p/e ratio", "pb ratio", "cagr", "sharpe", "sortino", "beta", "alpha",
	}
)

type rule struct {
	tag     Tag
	match   func(q string) bool
	chunk   model.ChunkType
	blocked bool
	single  bool
}

var (
	adviceRe          = prefixRegexp(adviceTerms)
	factualRe         = phraseRegexp(factualTerms)
	holdingsRe        = phraseRegexp(holdingsTerms)
	fundSizeRe        = phraseRegexp(fundSizeTerms)
	navRe             = phraseRegexp(navTerms)
	sipRe             = phraseRegexp(sipTerms)
	expenseRe         = phraseRegexp(expenseTerms)
	performanceRe     = phraseRegexp(performanceTerms)
	riskRe            = phraseRegexp(riskTerms)
	characteristicsRe = phraseRegexp(characteristicsTerms)
	platformRe        = phraseRegexp(platformTerms)
	definitionRe      = phraseRegexp(definitionPhrases)
	glossaryRe        = phraseRegexp(glossaryTerms)
	generalRe         = phraseRegexp(generalTerms)

	requestedCountRe = regexp.MustCompile(`\b(\d+)\s+funds?\b`)
)

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{
		tag:     TagAdvice,
		match:   advice,
		blocked: true,
	},
	{tag: TagHoldings, match: holdingsRe.MatchString, chunk: model.ChunkHoldings},
	{tag: TagFundSize, match: fundSizeRe.MatchString, chunk: model.ChunkCharacteristics},
	{tag: TagNAV, match: navRe.MatchString, chunk: model.ChunkNAVSIP, single: true},
	{tag: TagSIP, match: sipRe.MatchString, chunk: model.ChunkNAVSIP},
	{tag: TagExpense, match: expenseRe.MatchString, chunk: model.ChunkExpense},
	{tag: TagPerformance, match: performanceRe.MatchString, chunk: model.ChunkPerformance},
	{tag: TagRisk, match: riskRe.MatchString, chunk: model.ChunkRisk},
	{tag: TagCharacteristics, match: characteristicsRe.MatchString, chunk: model.ChunkCharacteristics},
	{tag: TagPlatform, match: platformRe.MatchString, chunk: model.ChunkPlatform},
}

// advice matches advice stems in any inflection ("recommended", "investing")
// unless the question is about holdings. Factual phrases such as "minimum
// investment" are masked first.
func advice(q string) bool {
	if holdingsRe.MatchString(q) {
		return false
	}
	return adviceRe.MatchString(factualRe.ReplaceAllString(q, " "))
}

// Classify routes a question.
func Classify(question string) Intent {
	q := Normalize(question)
	for _, r := range rules {
		if r.match(q) {
			return Intent{Tag: r.tag, ChunkType: r.chunk, Blocked: r.blocked, SingleAnswer: r.single}
		}
	}
	return Intent{Tag: TagGeneral}
}

// Greeting reports whether the question is a greeting: a greeting term on
// its own or followed by a space.
func Greeting(question string) bool {
	q := strings.TrimRight(Normalize(question), "!.?, ")
	for _, k := range greetingTerms {
		if q == k || strings.HasPrefix(q, k+" ") {
			return true
		}
	}
	return false
}

// Definition reports whether the question asks what a glossary term means.
// Whether it also names a fund is for the caller to check.
func Definition(question string) bool {
	q := Normalize(question)
	return definitionRe.MatchString(q) && glossaryRe.MatchString(q)
}

// General reports whether the question contains a general finance keyword.
func General(question string) bool {
	return generalRe.MatchString(Normalize(question))
}

// RequestedCount parses "N funds" from the question.
func RequestedCount(question string) (int, bool) {
	m := requestedCountRe.FindStringSubmatch(Normalize(question))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Normalize lower-cases and trims the question and folds typographic
// apostrophes.
func Normalize(question string) string {
	q := strings.ToLower(strings.TrimSpace(question))
	return strings.NewReplacer("’", "'", "‘", "'").Replace(q)
}

// phraseRegexp matches any of terms as whole words or phrases.
func phraseRegexp(terms []string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + alternation(terms) + `)(?:$|[^\p{L}\p{N}])`)
}

// prefixRegexp matches any of terms at the start of a word, so inflected
// forms match too.
func prefixRegexp(terms []string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + alternation(terms) + `)`)
}

func alternation(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = regexp.QuoteMeta(t)
	}
	return strings.Join(quoted, "|")
}
