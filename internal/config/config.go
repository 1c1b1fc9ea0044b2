package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by ENGRAM_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("ENGRAM_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// RepoPath is the absolute path of the repository this engine instance is
// scoped to (spec.md §4.2/§6): project id is derived from it, and the
// ActivityTracker scans it for commit activity. Defaults to the working
// directory.
func RepoPath() string {
	p := os.Getenv("REPO_PATH")
	if p == "" {
		wd, err := os.Getwd()
		if err == nil {
			return wd
		}
		return "."
	}
	return p
}

// ProjectIDOverride overrides the auto-derived project id (spec.md §6: "overridable
// via environment").
func ProjectIDOverride() string {
	return os.Getenv("PROJECT_ID")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "mock" if not set.
// Valid values: openai, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "mock" if not set.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	if LLMProvider() == "mock" {
		return ""
	}
	return OpenAIAPIKey()
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	if EmbeddingProvider() == "mock" {
		return ""
	}
	return OpenAIAPIKey()
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

func floatEnv(name string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(name), 64)
	if err != nil {
		return def
	}
	return v
}

func durationMinutesEnv(name string, defMinutes int) int {
	v, err := strconv.Atoi(os.Getenv(name))
	if err != nil || v <= 0 {
		return defMinutes
	}
	return v
}

// DecayBaseRate is the per-content-type base decay rate applied before the
// activity multiplier (spec.md §4.5). Defaults to 0.05.
func DecayBaseRate() float64 {
	return floatEnv("DECAY_BASE_RATE", 0.05)
}

// DecayIntervalMinutes is how often the decay worker runs a cycle.
func DecayIntervalMinutes() int {
	return durationMinutesEnv("DECAY_INTERVAL_MINUTES", 60)
}

// DecayStrengthFloor is the effective-strength cutoff below which an
// episodic memory is eligible for expiration (spec.md §4.5 default 0.01),
// one of three independent cleanup conditions alongside
// DecayMaxRetentionDays and the memory's own importance score.
func DecayStrengthFloor() float64 {
	return floatEnv("DECAY_STRENGTH_FLOOR", 0.01)
}

// DecayMaxRetentionDays bounds how long an episodic memory can live
// regardless of its current strength before it becomes eligible for
// cleanup (spec.md §4.5).
func DecayMaxRetentionDays() int {
	v, err := strconv.Atoi(os.Getenv("DECAY_MAX_RETENTION_DAYS"))
	if err != nil || v <= 0 {
		return 30
	}
	return v
}

// DecayImportanceFloor is the importance-score cutoff below which an
// episodic memory is eligible for expiration regardless of strength or age
// (spec.md §4.5).
func DecayImportanceFloor() float64 {
	return floatEnv("DECAY_IMPORTANCE_FLOOR", 0.01)
}

// ActivationThreshold is the minimum similarity a level-0 concept memory
// needs to seed spreading activation, and the minimum edge strength a
// connection needs to be followed during traversal (spec.md §4.6 uses the
// same "threshold" value for both).
func ActivationThreshold() float64 {
	return floatEnv("ACTIVATION_THRESHOLD", 0.1)
}

// ActivationCoreThreshold and ActivationPeripheralThreshold classify an
// activated memory once its activation score is computed (spec.md §4.6):
// >= core is returned as core, >= peripheral (but below core) as peripheral,
// anything lower is not accepted and does not expand further.
func ActivationCoreThreshold() float64 {
	return floatEnv("ACTIVATION_CORE_THRESHOLD", 0.7)
}

func ActivationPeripheralThreshold() float64 {
	return floatEnv("ACTIVATION_PERIPHERAL_THRESHOLD", 0.5)
}

// SimilarityWeight and SimilarityRecencyWeight blend raw cosine similarity
// with a recency term into combined_score (spec.md §4.7); both are
// normalized to sum to 1, and the package default of 0.8/0.2 applies
// whenever both are left at zero.
func SimilarityWeight() float64 {
	return floatEnv("SIMILARITY_WEIGHT", 0.8)
}

func SimilarityRecencyWeight() float64 {
	return floatEnv("SIMILARITY_RECENCY_WEIGHT", 0.2)
}

// BridgeNoveltyWeight and BridgeConnectionWeight combine into the bridge
// score used by bridge discovery (spec.md §4.8): score = novelty*w1 +
// connection_potential*w2.
func BridgeNoveltyWeight() float64 {
	return floatEnv("BRIDGE_NOVELTY_WEIGHT", 0.6)
}

func BridgeConnectionWeight() float64 {
	return floatEnv("BRIDGE_CONNECTION_WEIGHT", 0.4)
}

// BridgeMinNovelty is the minimum novelty (1 - similarity to the query) a
// candidate needs to be considered a bridge at all (spec.md §4.8): bridges
// are found by inverting distance, not by maximizing it.
func BridgeMinNovelty() float64 {
	return floatEnv("BRIDGE_MIN_NOVELTY", 0.3)
}

// BridgeMaxCandidates bounds how many vector hits, pooled across all three
// hierarchy levels, bridge discovery scores per query (spec.md §4.8).
func BridgeMaxCandidates() int {
	v, err := strconv.Atoi(os.Getenv("BRIDGE_MAX_CANDIDATES"))
	if err != nil || v <= 0 {
		return 100
	}
	return v
}

// ActivityTrackerWindowDays is the sliding window over which commit rate and
// access rate are measured (spec.md §4.4).
func ActivityTrackerWindowDays() int {
	v, err := strconv.Atoi(os.Getenv("ACTIVITY_TRACKER_WINDOW_DAYS"))
	if err != nil || v <= 0 {
		return 30
	}
	return v
}

// ActivityTrackerCacheTTLMinutes is how long a computed activity level is
// cached before being recomputed.
func ActivityTrackerCacheTTLMinutes() int {
	return durationMinutesEnv("ACTIVITY_TRACKER_CACHE_TTL_MINUTES", 15)
}

// ActivityMaxCommitsPerDay and ActivityMaxAccessesPerDay are the per-day
// rates at which the git and access activity components saturate to 1
// (spec.md §4.4).
func ActivityMaxCommitsPerDay() float64 {
	return floatEnv("ACTIVITY_MAX_COMMITS_PER_DAY", 3)
}

func ActivityMaxAccessesPerDay() float64 {
	return floatEnv("ACTIVITY_MAX_ACCESSES_PER_DAY", 100)
}

// ActivityCommitWeight and ActivityAccessWeight blend the git and access
// components into the combined activity scalar (spec.md §4.4).
func ActivityCommitWeight() float64 {
	return floatEnv("ACTIVITY_COMMIT_WEIGHT", 0.6)
}

func ActivityAccessWeight() float64 {
	return floatEnv("ACTIVITY_ACCESS_WEIGHT", 0.4)
}

// ConsolidationIntervalMinutes is how often the consolidation worker runs.
func ConsolidationIntervalMinutes() int {
	return durationMinutesEnv("CONSOLIDATION_INTERVAL_MINUTES", 360)
}

// ConsolidationScoreThreshold is the minimum access-pattern consolidation
// score required before an episodic memory is promoted (spec.md §4.9).
func ConsolidationScoreThreshold() float64 {
	return floatEnv("CONSOLIDATION_SCORE_THRESHOLD", 0.6)
}

// StrengthFloor is the minimum edge strength retained at insertion time
// (spec.md §4.3), exposed as a tunable rather than only the domain default.
func StrengthFloor() float64 {
	return floatEnv("STRENGTH_FLOOR", 0.3)
}

// ProjectAPIKey is the bearer token the HTTP API requires for authenticated
// routes. Empty disables auth, which is the default for local/dev use.
func ProjectAPIKey() string {
	return os.Getenv("PROJECT_API_KEY")
}

// MaxActivations bounds how many activated memories RetrieveMemories will
// consider when spreading activation has no seeds and it falls back to plain
// similarity search (spec.md §4.10).
func MaxActivations() int {
	v, err := strconv.Atoi(os.Getenv("MAX_ACTIVATIONS"))
	if err != nil || v <= 0 {
		return 50
	}
	return v
}
