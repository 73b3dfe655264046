package core

import (
	"strings"
	"time"
)

// Podcast represents a podcast profile that episodes are generated for.
type Podcast struct {
	ID          string          `json:"id" bson:"_id"`
	Title       string          `json:"title" bson:"title"`
	Description string          `json:"description" bson:"description"` // Theme/editorial focus used to steer topic search
	Sources     []PodcastSource `json:"sources" bson:"sources"`         // Curated sources used to bias search queries
	Voice       VoiceConfig     `json:"voice" bson:"voice"`
	CreatedAt   time.Time       `json:"created_at" bson:"created_at"`
}

// PodcastSource is a vetted website/domain associated with a podcast.
type PodcastSource struct {
	URL            string   `json:"url" bson:"url"`
	Name           string   `json:"name" bson:"name"`
	Category       string   `json:"category" bson:"category"`
	TopicRelevance []string `json:"topic_relevance" bson:"topic_relevance"` // Topic keywords this source is good for
	QualityScore   float64  `json:"quality_score" bson:"quality_score"`     // Clamped to 1-10
	Frequency      string   `json:"frequency" bson:"frequency"`             // How often the source publishes
	Perspective    string   `json:"perspective" bson:"perspective"`         // Editorial slant (e.g. "technical", "policy")
}

// VoiceConfig holds text-to-speech voice settings for a podcast.
type VoiceConfig struct {
	Provider string  `json:"provider" bson:"provider"`
	VoiceID  string  `json:"voice_id" bson:"voice_id"`
	Speed    float64 `json:"speed" bson:"speed"` // 0.5 - 2.0
}

// Episode is the persisted artifact produced by the generation pipeline.
type Episode struct {
	ID           string    `json:"id" bson:"_id"`
	PodcastID    string    `json:"podcast_id" bson:"podcast_id"`
	Title        string    `json:"title" bson:"title"`
	Description  string    `json:"description" bson:"description"`
	Content      string    `json:"content" bson:"content"` // Final script text
	Sources      []string  `json:"sources" bson:"sources"` // URLs actually used during research
	BulletPoints []string  `json:"bullet_points" bson:"bullet_points"`
	AudioURL     string    `json:"audio_url,omitempty" bson:"audio_url,omitempty"` // Attached after synthesis, empty until then
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// TopicCandidate is an unranked, provider-sourced suggestion for episode
// subject matter. Relevance is provider-supplied and untrusted; ranking
// clamps missing or out-of-range values.
type TopicCandidate struct {
	Topic        string   `json:"topic"`
	Description  string   `json:"description"`
	Relevance    float64  `json:"relevance"` // Nominal range 1-10
	Recency      string   `json:"recency"`   // breaking/developing/trending/recent/ongoing/emerging, or source-defined
	Sources      []string `json:"sources"`
	KeyQuestions []string `json:"key_questions"`
	Query        string   `json:"query"`    // The search query that produced this candidate
	Provider     string   `json:"provider"` // Which provider produced it
	Score        float64  `json:"score"`    // Computed ranking score
}

// ClusterResult groups topic candidates judged semantically similar.
// Every input id appears in exactly one cluster, except inputs whose
// embedding failed, which are dropped entirely.
type ClusterResult struct {
	Clusters           map[int][]string `json:"clusters"`            // Cluster id -> member item ids
	ClusterAssignments []int            `json:"cluster_assignments"` // Parallel to the input order
	Noise              []string         `json:"noise"`               // Item ids dropped from clustering
}

// Empty reports whether clustering produced no usable result, which callers
// must treat as "clustering unavailable" rather than "zero clusters found".
func (r ClusterResult) Empty() bool {
	return len(r.Clusters) == 0 && len(r.ClusterAssignments) == 0
}

// EpisodeDigest summarizes prior episodes of a podcast. It feeds both topic
// search (avoid re-recommending covered topics) and the differentiation
// validator.
type EpisodeDigest struct {
	PodcastID    string   `json:"podcast_id"`
	EpisodeCount int      `json:"episode_count"`
	RecentTitles []string `json:"recent_titles"`
	RecentTopics []string `json:"recent_topics"`
	Summary      string   `json:"summary"` // Condensed description of recently covered ground
}

// ContainsTopic reports whether a candidate topic title is already covered
// by the digest, using case-insensitive containment in either direction.
func (d EpisodeDigest) ContainsTopic(topic string) bool {
	needle := strings.ToLower(strings.TrimSpace(topic))
	if needle == "" {
		return false
	}
	check := func(titles []string) bool {
		for _, t := range titles {
			hay := strings.ToLower(strings.TrimSpace(t))
			if hay == "" {
				continue
			}
			if strings.Contains(hay, needle) || strings.Contains(needle, hay) {
				return true
			}
		}
		return false
	}
	return check(d.RecentTitles) || check(d.RecentTopics)
}
