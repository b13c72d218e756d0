package store

import "time"

// MemoryMessage is the transport-neutral view of a stored message used when
// assembling conversational context.
type MemoryMessage struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	MessageText string    `json:"message_text"`
	FileName    string    `json:"file_name,omitempty"`
	FileType    string    `json:"file_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ScoredExcerpt is a chunk of stored text together with its cosine similarity
// against the current query.
type ScoredExcerpt struct {
	MessageID  string    `json:"message_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	Similarity float64   `json:"similarity"`
	FileName   string    `json:"file_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileExcerpt is the leading portion of an uploaded document, surfaced by
// recency rather than similarity.
type FileExcerpt struct {
	MessageID string    `json:"message_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	Excerpt   string    `json:"excerpt"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextBundle is everything the assembler gathered for one incoming query.
// The same message may appear in more than one list; downstream consumers
// decide how to render the overlap.
type ContextBundle struct {
	RecentUserMessages []MemoryMessage `json:"recent_user_messages"`
	RecentChatMessages []MemoryMessage `json:"recent_chat_messages"`
	FileExcerpts       []FileExcerpt   `json:"file_excerpts"`
	SimilarChunks      []ScoredExcerpt `json:"similar_chunks"`
}

// IsEmpty reports whether the bundle carries no context at all.
func (b *ContextBundle) IsEmpty() bool {
	return len(b.RecentUserMessages) == 0 &&
		len(b.RecentChatMessages) == 0 &&
		len(b.FileExcerpts) == 0 &&
		len(b.SimilarChunks) == 0
}
