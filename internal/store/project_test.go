package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectID_DeterministicAndSanitized(t *testing.T) {
	id1 := ProjectID("my repo!", "/home/user/my repo")
	id2 := ProjectID("my repo!", "/home/user/my repo")
	assert.Equal(t, id1, id2)
	assert.NotContains(t, id1, " ")
	assert.NotContains(t, id1, "!")
}

func TestProjectID_DifferentPathsDifferentHash(t *testing.T) {
	id1 := ProjectID("repo", "/path/one")
	id2 := ProjectID("repo", "/path/two")
	assert.NotEqual(t, id1, id2)
}

func TestParseCollectionName_RoundTripsWithSuffixes(t *testing.T) {
	projectID := ProjectID("engram", "/abs/path/engram")

	for _, level := range []collectionLevel{levelConcepts, levelContexts, levelEpisodes} {
		name := projectID + "_" + CollectionSuffix(level)
		gotProject, gotSuffix, ok := ParseCollectionName(name)
		assert.True(t, ok, "expected %q to parse", name)
		assert.Equal(t, projectID, gotProject)
		assert.Equal(t, CollectionSuffix(level), gotSuffix)
	}
}

func TestParseCollectionName_RejectsMalformedNames(t *testing.T) {
	cases := []string{
		"",
		"no_hash_suffix_concepts",
		"project_1234_concepts",   // hash too short
		"project_deadbeef_widgets", // unrecognized suffix
	}
	for _, name := range cases {
		_, _, ok := ParseCollectionName(name)
		assert.False(t, ok, "expected %q to be rejected", name)
	}
}
