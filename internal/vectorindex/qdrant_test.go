package vectorindex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/require"
)

func TestParseDSN(t *testing.T) {
	host, port, apiKey, tls, err := parseDSN("localhost:6334?api_key=secret&tls=true")
	require.NoError(t, err)
	require.Equal(t, "localhost", host)
	require.Equal(t, 6334, port)
	require.Equal(t, "secret", apiKey)
	require.True(t, tls)
}

func TestParseDSNDefaultPort(t *testing.T) {
	host, port, _, _, err := parseDSN("qdrant.internal")
	require.NoError(t, err)
	require.Equal(t, "qdrant.internal", host)
	require.Equal(t, 6334, port)
}

func TestDistanceFor(t *testing.T) {
	require.Equal(t, qdrant.Distance_Cosine, distanceFor(""))
	require.Equal(t, qdrant.Distance_Euclid, distanceFor("l2"))
	require.Equal(t, qdrant.Distance_Dot, distanceFor("ip"))
}

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("topic:1.2:en:foo/bar.md")
	b := pointID("topic:1.2:en:foo/bar.md")
	require.Equal(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestPointIDPassesThroughRealUUID(t *testing.T) {
	u := uuid.New().String()
	require.Equal(t, u, pointID(u))
}

func TestContentHashStable(t *testing.T) {
	require.Equal(t, ContentHash("abc"), ContentHash("abc"))
	require.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
}
