package model

import "time"

// ChunkType names a category of related fields for one fund.
type ChunkType string

const (
	ChunkNAVSIP          ChunkType = "nav_sip_information"
	ChunkExpense         ChunkType = "expense_information"
	ChunkPerformance     ChunkType = "performance_metrics"
	ChunkCharacteristics ChunkType = "fund_characteristics"
	ChunkRisk            ChunkType = "risk_information"
	ChunkHoldings        ChunkType = "holdings_information"
	ChunkPlatform        ChunkType = "platform_information"
)

// AllChunkTypes returns the chunk types in their canonical file order.
func AllChunkTypes() []ChunkType {
	return []ChunkType{
		ChunkNAVSIP,
		ChunkExpense,
		ChunkPerformance,
		ChunkCharacteristics,
		ChunkRisk,
		ChunkHoldings,
		ChunkPlatform,
	}
}

// Chunk is the unit of retrieval: a group of related fields for one fund.
type Chunk struct {
	FundName  string         `json:"fund_name"`
	SourceURL string         `json:"source_url"`
	ChunkType ChunkType      `json:"chunk_type"`
	Data      map[string]any `json:"data"`
}

// Source attributes part of an answer to the page it came from.
type Source struct {
	FundName string `json:"fund_name"`
	URL      string `json:"url"`
	Type     string `json:"type"`
}

// Answer is the reply to one question.
type Answer struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// Interaction is one entry in a session's conversation history.
type Interaction struct {
	Timestamp   time.Time `json:"timestamp"`
	Question    string    `json:"question"`
	Response    string    `json:"response"`
	Intent      string    `json:"intent"`
	ChunksFound int       `json:"chunks_found"`
	UsedLLM     bool      `json:"used_llm"`
}
