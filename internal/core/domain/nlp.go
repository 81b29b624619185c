package domain

const (
	DefaultMaxResults       = 50
	DefaultMinWordLength    = 2
	DefaultSummaryType      = "comprehensive"
	DefaultSummarySentences = 5
)

// SampleHistoricalText is analyzed by word-frequency tasks whose files yield no text.
const SampleHistoricalText = "中国历史悠久，文化灿烂。从古代的夏商周三代，到秦汉统一，再到唐宋元明清各朝代，每个时期都有其独特的历史特色。" +
	"古代中国在政治、经济、文化、科技等方面都取得了辉煌的成就。政治上，建立了完善的官僚制度；经济上，农业和手工业发达；" +
	"文化上，儒家思想影响深远；科技上，四大发明改变了世界。这些历史文化遗产至今仍然影响着现代中国的发展。"

// NLP response sections.
const (
	SectionWordFrequency   = "word_frequency"
	SectionWordFrequencies = "word_frequencies"
	SectionTimelineEvents  = "timeline_events"
	SectionGeoLocations    = "geo_locations"
	SectionSummary         = "summary"
)
