package entity

// DocumentRecord is one section of the law corpus as written by the ingest job.
type DocumentRecord struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// Hit is a nearest-neighbour result. Ordinal indexes the content array the
// index was built from.
type Hit struct {
	Ordinal int
	Score   float32
}
