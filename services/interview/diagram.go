package interview

import (
	"fmt"
	"regexp"
	"strings"

	"stash/models"

	"github.com/samber/lo"
)

const (
	missingStorage      = "database/storage layer"
	missingLoadBalancer = "load balancer"
	missingAPI          = "API gateway/service layer"
	missingQueue        = "message queue"
	missingCDN          = "CDN for static content"

	loadBalancerRectangleThreshold = 3
	queueRectangleThreshold        = 5
)

var (
	dataStorePattern    = regexp.MustCompile(`database|db|mysql|postgres|mongo|redis|cache|storage`)
	loadBalancerPattern = regexp.MustCompile(`load.?balancer|lb|nginx|haproxy|alb`)
	apiPattern          = regexp.MustCompile(`api|rest|graphql|endpoint|service|microservice`)
	queuePattern        = regexp.MustCompile(`queue|kafka|rabbitmq|sqs|pubsub`)
	cdnPattern          = regexp.MustCompile(`cdn|cloudfront|cloudflare`)
)

func emptyDiagramAnalysis() models.DiagramAnalysis {
	return models.DiagramAnalysis{
		MissingComponents: []string{"database", "load balancer", "API gateway", "cache"},
	}
}

// AnalyzeDiagram derives structural facts from a whiteboard snapshot.
func AnalyzeDiagram(elements []models.Element) models.DiagramAnalysis {
	if len(elements) == 0 {
		return emptyDiagramAnalysis()
	}

	texts := lo.FilterMap(elements, func(e models.Element, _ int) (string, bool) {
		return strings.ToLower(e.Text), e.Type == models.ElementText && e.Text != ""
	})
	corpus := strings.Join(texts, " ")

	counts := lo.CountValuesBy(elements, func(e models.Element) models.ElementType { return e.Type })
	rectangles := counts[models.ElementRectangle]

	analysis := models.DiagramAnalysis{
		ComponentCount:   rectangles + counts[models.ElementDiamond],
		HasDataStores:    dataStorePattern.MatchString(corpus),
		HasLoadBalancers: loadBalancerPattern.MatchString(corpus),
		HasAPIs:          apiPattern.MatchString(corpus),
		HasQueues:        queuePattern.MatchString(corpus),
		HasCDN:           cdnPattern.MatchString(corpus),
		HasConnections:   counts[models.ElementArrow] > 0,
	}

	missing := []string{}
	if !analysis.HasDataStores {
		missing = append(missing, missingStorage)
	}
	if !analysis.HasLoadBalancers && rectangles > loadBalancerRectangleThreshold {
		missing = append(missing, missingLoadBalancer)
	}
	if !analysis.HasAPIs {
		missing = append(missing, missingAPI)
	}
	if !analysis.HasQueues && rectangles > queueRectangleThreshold {
		missing = append(missing, missingQueue)
	}
	if !analysis.HasCDN {
		missing = append(missing, missingCDN)
	}
	analysis.MissingComponents = missing

	return analysis
}

// SummarizeDiagram renders an analysis as prompt context.
func SummarizeDiagram(a models.DiagramAnalysis) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("- Components drawn: %d\n", a.ComponentCount))
	b.WriteString(fmt.Sprintf("- Data stores: %s\n", yesNo(a.HasDataStores)))
	b.WriteString(fmt.Sprintf("- Load balancers: %s\n", yesNo(a.HasLoadBalancers)))
	b.WriteString(fmt.Sprintf("- APIs/services: %s\n", yesNo(a.HasAPIs)))
	b.WriteString(fmt.Sprintf("- Connections: %s\n", yesNo(a.HasConnections)))
	if len(a.MissingComponents) > 0 {
		b.WriteString(fmt.Sprintf("- Possibly missing: %s\n", strings.Join(a.MissingComponents, ", ")))
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
