package retrieval

// SearchInput 本地检索输入。
type SearchInput struct {
	TenantID string
	Query    string
	TopK     int

	// Alpha 稠密得分的混合权重；<0 时使用引擎默认值。
	Alpha float64
	// ScoreCutoff 相似度下限；<0 时使用引擎默认值。
	ScoreCutoff float64

	// DocNames 为空表示不过滤；非空则仅检索指定文档。
	DocNames []string

	IncludeEmbedding bool
}

// Passage 一条召回的 SOP 段落。
type Passage struct {
	ID    string
	Text  string
	Score float64

	// DenseScore / KeywordScore 为混合检索的两路原始得分。
	DenseScore   float64
	KeywordScore float64

	DocumentID    string
	DocName       string
	Version       string
	Page          int
	SectionNumber string
	SectionTitle  string
	ChunkIndex    int
}

// DebugInfo 检索调试信息。
type DebugInfo struct {
	EmbedTimeMs        int64
	VectorSearchTimeMs int64
	TotalCandidates    int
	FilteredCandidates int
	BelowCutoff        int
}

// SearchOutput 检索输出。
type SearchOutput struct {
	Passages []Passage

	DisabledReason string
	QueryEmbedding []float32
	Debug          *DebugInfo
}

// Section 入库前已清洗的文档章节。
type Section struct {
	Number string
	Title  string
	Page   int
	Text   string
}
