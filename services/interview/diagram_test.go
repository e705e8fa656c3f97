package interview

import (
	"testing"

	"stash/models"

	"github.com/stretchr/testify/assert"
)

func shapes(kind models.ElementType, n int) []models.Element {
	out := make([]models.Element, n)
	for i := range out {
		out[i] = models.Element{Type: kind}
	}
	return out
}

func labels(texts ...string) []models.Element {
	out := make([]models.Element, len(texts))
	for i, text := range texts {
		out[i] = models.Element{Type: models.ElementText, Text: text}
	}
	return out
}

func diagram(parts ...[]models.Element) []models.Element {
	var out []models.Element
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestAnalyzeDiagramEmpty(t *testing.T) {
	t.Parallel()

	for _, elements := range [][]models.Element{nil, {}} {
		analysis := AnalyzeDiagram(elements)

		assert.Equal(t, 0, analysis.ComponentCount)
		assert.False(t, analysis.HasDataStores)
		assert.False(t, analysis.HasLoadBalancers)
		assert.False(t, analysis.HasAPIs)
		assert.False(t, analysis.HasConnections)
		assert.Equal(t, []string{"database", "load balancer", "API gateway", "cache"}, analysis.MissingComponents)
	}
}

func TestAnalyzeDiagramThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		elements        []models.Element
		wantCount       int
		wantMissing     []string
		wantNotMissing  []string
		wantConnections bool
	}{
		{
			name:        "four rectangles flag a load balancer",
			elements:    shapes(models.ElementRectangle, 4),
			wantCount:   4,
			wantMissing: []string{missingLoadBalancer},
		},
		{
			name:           "two rectangles do not flag a load balancer",
			elements:       shapes(models.ElementRectangle, 2),
			wantCount:      2,
			wantNotMissing: []string{missingLoadBalancer, missingQueue},
		},
		{
			name:           "five rectangles do not flag a queue",
			elements:       shapes(models.ElementRectangle, 5),
			wantCount:      5,
			wantMissing:    []string{missingLoadBalancer},
			wantNotMissing: []string{missingQueue},
		},
		{
			name:            "diamonds count as components, arrows and text do not",
			elements:        diagram(shapes(models.ElementRectangle, 1), shapes(models.ElementDiamond, 2), shapes(models.ElementArrow, 3), labels("user")),
			wantCount:       3,
			wantConnections: true,
			wantNotMissing:  []string{missingLoadBalancer},
		},
		{
			name:        "CDN is always flagged when absent",
			elements:    diagram(shapes(models.ElementRectangle, 1), labels("postgres", "api")),
			wantCount:   1,
			wantMissing: []string{missingCDN},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			analysis := AnalyzeDiagram(tt.elements)

			assert.Equal(t, tt.wantCount, analysis.ComponentCount)
			assert.Equal(t, tt.wantConnections, analysis.HasConnections)
			for _, m := range tt.wantMissing {
				assert.Contains(t, analysis.MissingComponents, m)
			}
			for _, m := range tt.wantNotMissing {
				assert.NotContains(t, analysis.MissingComponents, m)
			}
		})
	}
}

func TestAnalyzeDiagramLargeUnlabelled(t *testing.T) {
	t.Parallel()

	analysis := AnalyzeDiagram(diagram(shapes(models.ElementRectangle, 6), shapes(models.ElementArrow, 2)))

	assert.Equal(t, 6, analysis.ComponentCount)
	assert.True(t, analysis.HasConnections)
	assert.False(t, analysis.HasDataStores)
	assert.Equal(t, []string{
		missingStorage,
		missingLoadBalancer,
		missingAPI,
		missingQueue,
		missingCDN,
	}, analysis.MissingComponents)
}

func TestAnalyzeDiagramKeywordFamilies(t *testing.T) {
	t.Parallel()

	analysis := AnalyzeDiagram(diagram(
		shapes(models.ElementRectangle, 7),
		shapes(models.ElementArrow, 4),
		labels("Postgres DB", "NGINX", "REST API", "Kafka", "CloudFront"),
	))

	assert.True(t, analysis.HasDataStores)
	assert.True(t, analysis.HasLoadBalancers)
	assert.True(t, analysis.HasAPIs)
	assert.True(t, analysis.HasQueues)
	assert.True(t, analysis.HasCDN)
	assert.Empty(t, analysis.MissingComponents)
}

func TestAnalyzeDiagramIgnoresTextOnShapes(t *testing.T) {
	t.Parallel()

	analysis := AnalyzeDiagram([]models.Element{
		{Type: models.ElementRectangle, Text: "redis"},
	})

	assert.False(t, analysis.HasDataStores)
	assert.Contains(t, analysis.MissingComponents, missingStorage)
}

func BenchmarkAnalyzeDiagram(b *testing.B) {
	elements := diagram(
		shapes(models.ElementRectangle, 20),
		shapes(models.ElementArrow, 30),
		labels("api gateway", "user service", "postgres", "redis cache", "kafka", "nginx"),
	)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		AnalyzeDiagram(elements)
	}
}
