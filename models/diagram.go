package models

type ElementType string

const (
	ElementRectangle ElementType = "rectangle"
	ElementDiamond   ElementType = "diamond"
	ElementEllipse   ElementType = "ellipse"
	ElementArrow     ElementType = "arrow"
	ElementLine      ElementType = "line"
	ElementText      ElementType = "text"
)

// Element is one shape from the whiteboard snapshot.
type Element struct {
	ID   string      `json:"id,omitempty"`
	Type ElementType `json:"type"`
	Text string      `json:"text,omitempty"`
}

type DiagramAnalysis struct {
	ComponentCount    int      `json:"componentCount"`
	HasDataStores     bool     `json:"hasDataStores"`
	HasLoadBalancers  bool     `json:"hasLoadBalancers"`
	HasAPIs           bool     `json:"hasAPIs"`
	HasQueues         bool     `json:"hasQueues"`
	HasCDN            bool     `json:"hasCDN"`
	HasConnections    bool     `json:"hasConnections"`
	MissingComponents []string `json:"missingComponents"`
}

type UpdateDiagramRequest struct {
	Elements []Element `json:"elements"`
}

type DiagramSuggestionsResponse struct {
	Analysis    DiagramAnalysis `json:"analysis"`
	Suggestions []string        `json:"suggestions"`
}
