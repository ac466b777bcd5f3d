package vectorstore

// SourceType identifies which kind of course record a chunk came from.
type SourceType string

const (
	SourceSyllabus   SourceType = "syllabus"
	SourceAssignment SourceType = "assignment"
	SourceFile       SourceType = "file"
)

// Chunk is one embedded window of course content. Multiple chunks map to a
// single source record; all of a course's chunks are deleted together when
// the course is re-indexed.
type Chunk struct {
	ID         string     // UUID point id
	CourseID   int64      // owning course
	SourceID   int64      // assignment/file id; course id for syllabi
	SourceType SourceType // syllabus, assignment, file
	ChunkIndex int        // position within the source text (0, 1, 2...)
	Content    string     // chunk text
	Embedding  []float32  // 1536-dim vector (text-embedding-3-small)
}

// ScoredChunk pairs a chunk with its similarity score from a search.
type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// CollectionName is the single Qdrant collection for course content.
const CollectionName = "course_content"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536
