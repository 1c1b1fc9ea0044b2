package store

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// sanitizeRe maps any character outside [A-Za-z0-9_] to '_', per spec.md §4.2.
var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// collectionNameRe validates "<project>_<suffix>" where project is itself
// "<repoSegment>_<8hexHash>" with repoSegment in [A-Za-z0-9_]+. Anchored so
// it rejects legacy collections and is resistant to project names that
// themselves end in "concepts"/"contexts"/"episodes".
var collectionNameRe = regexp.MustCompile(`^([A-Za-z0-9_]+)_([0-9a-f]{8})_(concepts|contexts|episodes)$`)

// ProjectID derives the deterministic "<sanitized_repo>_<8hex>" identifier
// for a repository's absolute path (spec.md §4.2 / §6).
func ProjectID(repoName, absRepoPath string) string {
	sanitized := sanitizeRe.ReplaceAllString(repoName, "_")
	sum := sha256.Sum256([]byte(absRepoPath))
	hash := hex.EncodeToString(sum[:])[:8]
	return sanitized + "_" + hash
}

// CollectionSuffix maps a hierarchy level to its collection name suffix.
func CollectionSuffix(level collectionLevel) string {
	switch level {
	case levelConcepts:
		return "concepts"
	case levelContexts:
		return "contexts"
	default:
		return "episodes"
	}
}

type collectionLevel int

const (
	levelConcepts collectionLevel = iota
	levelContexts
	levelEpisodes
)

// ParseCollectionName validates and decomposes a physical collection/table
// name of the form "<project>_<suffix>" where project ends in an 8-hex-char
// hash segment. Returns (projectID, suffix, ok).
func ParseCollectionName(name string) (projectID string, suffix string, ok bool) {
	m := collectionNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1] + "_" + m[2], m[3], true
}
