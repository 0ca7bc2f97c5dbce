// Package compose turns retrieved chunks into a reply: a generated answer
// when a generator is configured and working, otherwise the rendered context
// verbatim. Canned replies for refusals, greetings and definitions live here
// too.
package compose

import (
	"context"
	"fmt"

	"github.com/sells-group/fundqa/internal/intent"
	"github.com/sells-group/fundqa/internal/model"
)

// Canned reply texts.
const (
	RefusalText = "This assistant is designed to provide factual information about UTI Mutual Funds only. " +
		"It does not provide investment advice."
	NoResultsText = "I couldn't find relevant information to answer your question. " +
		"Could you please rephrase or ask about a different topic?"
	GreetingText = "Hello! I'm your UTI Mutual Fund Assistant. I can help you explore and learn more about " +
		"UTI's mutual fund offerings. Feel free to ask me about fund details, performance metrics, " +
		"expenses, risk information, and more. Or visit Groww to explore all available funds: " +
		ReferenceURL
	DefinitionText = "I don't have this information in my current database. " +
		"Please visit Groww (" + ReferenceURL + ") to know more about mutual fund terms and indicators."

	ReferenceURL = "https://groww.in/mutual-funds/amc/uti-mutual-funds"
)

// ReferenceSource is attached to greeting and definition replies.
var ReferenceSource = model.Source{
	FundName: "Groww - UTI Mutual Funds",
	URL:      ReferenceURL,
	Type:     "reference",
}

// Response is a composed reply.
type Response struct {
	Text    string
	Sources []model.Source
	UsedLLM bool
}

// Answer converts the response to its wire form.
func (r Response) Answer() model.Answer {
	sources := r.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	return model.Answer{Response: r.Text, Sources: sources}
}

// Refusal is the reply to blocked questions.
func Refusal() Response { return Response{Text: RefusalText, Sources: []model.Source{}} }

// NoResults is the reply when nothing relevant was retrieved.
func NoResults() Response { return Response{Text: NoResultsText, Sources: []model.Source{}} }

// Greeting is the reply to greetings.
func Greeting() Response {
	return Response{Text: GreetingText, Sources: []model.Source{ReferenceSource}}
}

// Definition is the reply to general term questions the corpus cannot answer.
func Definition() Response {
	return Response{Text: DefinitionText, Sources: []model.Source{ReferenceSource}}
}

// Composer builds replies. A nil generator always uses the fallback.
type Composer struct {
	gen Generator
}

// New creates a Composer. gen may be nil.
func New(gen Generator) *Composer {
	return &Composer{gen: gen}
}

// HasGenerator reports whether replies may be generated.
func (c *Composer) HasGenerator() bool { return c.gen != nil }

// Compose answers question from chunks. It never fails: generation errors
// are logged and the rendered context is returned instead.
func (c *Composer) Compose(ctx context.Context, question string, in intent.Intent, chunks []model.Chunk) Response {
	if in.Blocked {
		return Refusal()
	}
	if len(chunks) == 0 {
		return NoResults()
	}

	text := Context(chunks)
	resp := Response{Sources: Sources(chunks)}

	if c.gen != nil {
		out, err := c.gen.Generate(ctx, Prompt(question, in, text))
		if err == nil {
			resp.Text = out
			resp.UsedLLM = true
			return resp
		}
		logGenerationFailure(err)
	}

	resp.Text = Fallback(text)
	return resp
}

// Fallback wraps rendered context as a reply.
func Fallback(rendered string) string {
	return "Based on the information I found:\n\n" + rendered
}

// Sources lists the distinct (fund, url, type) triples of chunks in order of
// first appearance. The result is never nil.
func Sources(chunks []model.Chunk) []model.Source {
	out := []model.Source{}
	seen := make(map[model.Source]bool, len(chunks))
	for _, c := range chunks {
		s := model.Source{FundName: c.FundName, URL: c.SourceURL, Type: string(c.ChunkType)}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

const navPrompt = `Extract the NAV (Net Asset Value) information from the context.
Provide a direct, concise answer in this format:
"The NAV of [Fund Name] is Rs [NAV amount] as on [date]."

Context:
%s

Question: %s

Response:`

const generalPrompt = `You are a helpful assistant answering questions about UTI mutual funds.
Use the following context to answer the question accurately and concisely.

Context:
%s

Question: %s

Please provide a helpful, conversational response based on the context above.
If the context doesn't contain relevant information, politely say so.
Format your response in a clear, easy-to-read manner.
This is for factual information only. Do not provide investment advice.

Response:`

// Prompt builds the generation prompt for a question.
func Prompt(question string, in intent.Intent, rendered string) string {
	tmpl := generalPrompt
	if in.Tag == intent.TagNAV {
		tmpl = navPrompt
	}
	return fmt.Sprintf(tmpl, rendered, question)
}
