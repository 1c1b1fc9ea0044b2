package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
)

func TestLevelSuffix_MapsEveryHierarchyLevel(t *testing.T) {
	assert.Equal(t, "concepts", levelSuffix(domain.LevelConcept))
	assert.Equal(t, "contexts", levelSuffix(domain.LevelContext))
	assert.Equal(t, "episodes", levelSuffix(domain.LevelEpisode))
}

func TestVectorStore_TableName_BuildsAndValidatesIdentifier(t *testing.T) {
	s := NewVectorStore(nil, 32)

	name, err := s.tableName("proj_deadbeef", domain.LevelEpisode)
	require.NoError(t, err)
	assert.Equal(t, "proj_deadbeef_episodes", name)
}

func TestVectorStore_TableName_RejectsUnsafeProjectID(t *testing.T) {
	s := NewVectorStore(nil, 32)

	_, err := s.tableName("proj; DROP TABLE users;--", domain.LevelEpisode)
	assert.Error(t, err)
}
