// Package store provides SQLite-backed persistence for the cogmem memory
// core: memories, typed relations between them, session summaries,
// behavioral patterns, scheduled items, and user profiles.
package store

// Category is the closed set of memory categories (§3.1).
type Category string

const (
	CategoryPreference   Category = "preference"
	CategoryFact         Category = "fact"
	CategoryEvent        Category = "event"
	CategoryRelationship Category = "relationship"
	CategoryInsight      Category = "insight"
)

// MemoryType is the closed set of memory kinds (§3.1).
type MemoryType string

const (
	MemoryTypeRegular        MemoryType = "regular"
	MemoryTypeDerived        MemoryType = "derived"
	MemoryTypeSuperseded     MemoryType = "superseded"
	MemoryTypeStaticProfile  MemoryType = "static_profile"
	MemoryTypeDynamicProfile MemoryType = "dynamic_profile"
)

// Source identifies who produced an entity (§3.1, §3.5).
type Source string

const (
	SourceUser   Source = "user"
	SourceAgent  Source = "agent"
	SourceSystem Source = "system"
)

// LearnedFrom tags the provenance of a derived/insight memory (§3.1).
type LearnedFrom string

const (
	LearnedFromNREMConsolidation LearnedFrom = "nrem_consolidation"
	LearnedFromSelfReflection    LearnedFrom = "self_reflection"
	LearnedFromInference         LearnedFrom = "inference"
)

// Memory is the primary entity of the core: an immutable fact that may
// later be superseded (§3.1).
type Memory struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Content      string         `json:"content"`
	Category     Category       `json:"category"`
	MemoryType   MemoryType     `json:"memoryType"`
	Importance   int            `json:"importance"`
	Confidence   float64        `json:"confidence"`
	IsLatest     bool           `json:"isLatest"`
	Source       Source         `json:"source"`
	DocumentDate int64          `json:"documentDate"`
	EventDate    *int64         `json:"eventDate,omitempty"`
	Prominence   float64        `json:"prominence"`
	LastAccessed int64          `json:"lastAccessed"`
	AccessCount  int            `json:"accessCount"`
	SourceChunk  string         `json:"sourceChunk,omitempty"`
	Embedding    []float32      `json:"embedding,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LearnedFrom  LearnedFrom    `json:"learnedFrom,omitempty"`
	CreatedAt    int64          `json:"createdAt"`
	UpdatedAt    int64          `json:"updatedAt"`
}

// RelationType is the closed set of relation edge types (§3.2).
type RelationType string

const (
	RelationUpdates RelationType = "UPDATES"
	RelationExtends RelationType = "EXTENDS"
	RelationDerives RelationType = "DERIVES"
)

// Relation is a directed typed edge between two memories (§3.2).
type Relation struct {
	ID           string       `json:"id"`
	SourceID     string       `json:"sourceId"`
	TargetID     string       `json:"targetId"`
	RelationType RelationType `json:"relationType"`
	Confidence   float64      `json:"confidence"`
	CreatedAt    int64        `json:"createdAt"`
}

// SessionSummary is an immutable record of a completed session (§3.3).
type SessionSummary struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	Summary      string    `json:"summary"`
	Topics       []string  `json:"topics"`
	MessageCount int       `json:"messageCount"`
	DurationMs   int64     `json:"durationMs"`
	Embedding    []float32 `json:"embedding,omitempty"`
	CreatedAt    int64     `json:"createdAt"`
}

// Trend is the closed set of directional trends used across behavioral
// signals (§3.4).
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// ProactivenessDial gates how aggressively gap signals become nudges
// (§3.4, §4.H).
type ProactivenessDial string

const (
	DialConservative ProactivenessDial = "conservative"
	DialModerate     ProactivenessDial = "moderate"
	DialAggressive   ProactivenessDial = "aggressive"
)

// MessageFrequency tracks message-rate trend (§3.4).
type MessageFrequency struct {
	DailyRate    float64 `json:"dailyRate"`
	WeeklyAvg    float64 `json:"weeklyAvg"`
	Trend        Trend   `json:"trend"`
	LastComputed int64   `json:"lastComputed"`
}

// SessionEngagement tracks per-session engagement trend (§3.4).
type SessionEngagement struct {
	AvgMessagesPerSession float64 `json:"avgMessagesPerSession"`
	AvgDurationMs         float64 `json:"avgDurationMs"`
	Trend                 Trend   `json:"trend"`
	LastComputed          int64   `json:"lastComputed"`
}

// ResponseLength tracks average response length trend (§3.4).
type ResponseLength struct {
	AvgLength    float64 `json:"avgLength"`
	Trend        Trend   `json:"trend"`
	LastComputed int64   `json:"lastComputed"`
}

// SmoothedAffect is an EMA-smoothed emotional read (§3.4), half-life ~7d.
type SmoothedAffect struct {
	Valence    float64 `json:"valence"` // -1..1
	Arousal    float64 `json:"arousal"` // 0..1
	Emotion    string  `json:"emotion"`
	GoalSignal string  `json:"goalSignal"`
}

// ResponsePreferences holds the proactiveness dial and trust score (§3.4).
type ResponsePreferences struct {
	ProactivenessDial ProactivenessDial `json:"proactivenessDial"`
	TrustScore        float64           `json:"trustScore"`
}

// BehavioralPatterns is the per-user rolling signal bundle (§3.4). All
// fields are optional (pointer) so a cold-start user has none computed.
type BehavioralPatterns struct {
	UserID              string               `json:"userId"`
	MessageFrequency    *MessageFrequency    `json:"messageFrequency,omitempty"`
	SessionEngagement   *SessionEngagement   `json:"sessionEngagement,omitempty"`
	ResponseLength      *ResponseLength      `json:"responseLength,omitempty"`
	SmoothedAffect      *SmoothedAffect      `json:"smoothedAffect,omitempty"`
	ResponsePreferences *ResponsePreferences `json:"responsePreferences,omitempty"`
	UpdatedAt           int64                `json:"updatedAt"`
}

// ScheduledItemKind is nudge (plain message) or task (sub-agent goal).
type ScheduledItemKind string

const (
	KindNudge ScheduledItemKind = "nudge"
	KindTask  ScheduledItemKind = "task"
)

// ScheduledItemStatus tracks delivery lifecycle (§3.5).
type ScheduledItemStatus string

const (
	StatusPending   ScheduledItemStatus = "pending"
	StatusActed     ScheduledItemStatus = "acted"
	StatusDismissed ScheduledItemStatus = "dismissed"
	StatusExpired   ScheduledItemStatus = "expired"
)

// TaskConfig describes a sub-agent-executed goal (§3.5). Non-nil iff
// Kind == KindTask.
type TaskConfig struct {
	Goal      string   `json:"goal"`
	Tools     []string `json:"tools"`
	ModelTier string   `json:"modelTier,omitempty"`
}

// Recurring describes how a scheduled item re-fires after delivery.
// Kind is one of "at" (one-shot, unused once created), "every" (fixed
// interval in ms), or "cron" (cron expression, optionally with TZ) —
// generalized from beeper-ai-bridge's CronSchedule.
type Recurring struct {
	Kind    string `json:"kind"`
	EveryMs int64  `json:"everyMs,omitempty"`
	Expr    string `json:"expr,omitempty"`
	TZ      string `json:"tz,omitempty"`
}

// ScheduledItem is a future-dated row that, when fired, becomes a nudge or
// task delivered through the external send handler (§3.5).
type ScheduledItem struct {
	ID             string              `json:"id"`
	UserID         string              `json:"userId"`
	SessionID      string              `json:"sessionId,omitempty"`
	Source         Source              `json:"source"`
	Kind           ScheduledItemKind   `json:"kind"`
	Type           string              `json:"type"`
	Message        string              `json:"message"`
	Context        map[string]any      `json:"context,omitempty"`
	TriggerAt      int64               `json:"triggerAt"`
	Recurring      *Recurring          `json:"recurring,omitempty"`
	SourceMemoryID string              `json:"sourceMemoryId,omitempty"`
	TaskConfig     *TaskConfig         `json:"taskConfig,omitempty"`
	Status         ScheduledItemStatus `json:"status"`
	Attempts       int                 `json:"attempts"`
	CreatedAt      int64               `json:"createdAt"`
	UpdatedAt      int64               `json:"updatedAt"`
}

// Profile is a single per-user row anchoring static_profile/
// dynamic_profile memories (SPEC_FULL.md §3 supplement).
type Profile struct {
	UserID         string `json:"userId"`
	StaticFacts    string `json:"staticFacts"`
	DynamicSummary string `json:"dynamicSummary"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// MemoryQueryOptions filters getMemoriesByUser (§4.A).
type MemoryQueryOptions struct {
	MinProminence     *float64
	IsLatest          *bool
	IncludeAllSources bool
	Category          *Category
	MemoryType        *MemoryType
	Limit             int
}

// MemoryPatch is a partial update applied by updateMemory (§4.A). Nil
// fields are left unchanged.
type MemoryPatch struct {
	Content      *string
	Category     *Category
	MemoryType   *MemoryType
	Importance   *int
	Confidence   *float64
	IsLatest     *bool
	Prominence   *float64
	LastAccessed *int64
	AccessCount  *int
	Embedding    []float32
	Metadata     map[string]any
	LearnedFrom  *LearnedFrom
}
