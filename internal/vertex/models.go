package vertex

import "fmt"

// TaskType tells the embedding model how the text will be used
type TaskType string

const (
	TaskRetrievalQuery    TaskType = "RETRIEVAL_QUERY"
	TaskRetrievalDocument TaskType = "RETRIEVAL_DOCUMENT"
)

// APIError is a non-2xx response from a Google API
type APIError struct {
	StatusCode int    `json:"code"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

// Error implements the error interface for APIError
func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("vertex api error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("vertex api error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

type embedInstance struct {
	Content  string   `json:"content"`
	TaskType TaskType `json:"task_type,omitempty"`
}

type embedRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// Index is a Vector Search index resource
type Index struct {
	Name              string `json:"name"`
	DisplayName       string `json:"displayName"`
	IndexUpdateMethod string `json:"indexUpdateMethod,omitempty"`
	Metadata          struct {
		Config struct {
			Dimensions int `json:"dimensions"`
		} `json:"config"`
	} `json:"metadata"`
}

// DeployedIndex links an index to an endpoint
type DeployedIndex struct {
	ID    string `json:"id"`
	Index string `json:"index"`
}

// IndexEndpoint is a Vector Search index endpoint resource
type IndexEndpoint struct {
	Name                     string          `json:"name"`
	DisplayName              string          `json:"displayName"`
	PublicEndpointDomainName string          `json:"publicEndpointDomainName,omitempty"`
	DeployedIndexes          []DeployedIndex `json:"deployedIndexes"`
}

// DeployedIndexFor returns the deployed index ID serving index, if any
func (e *IndexEndpoint) DeployedIndexFor(index string) (string, bool) {
	for _, d := range e.DeployedIndexes {
		if d.Index == index {
			return d.ID, true
		}
	}
	return "", false
}

// Neighbor is one nearest-neighbour match
type Neighbor struct {
	ID       string
	Distance float64
}

type findNeighborsRequest struct {
	DeployedIndexID     string          `json:"deployed_index_id"`
	Queries             []neighborQuery `json:"queries"`
	ReturnFullDatapoint bool            `json:"return_full_datapoint"`
}

type neighborQuery struct {
	Datapoint     Datapoint `json:"datapoint"`
	NeighborCount int       `json:"neighbor_count"`
}

type findNeighborsResponse struct {
	NearestNeighbors []struct {
		ID        string `json:"id"`
		Neighbors []struct {
			Datapoint struct {
				DatapointID string `json:"datapointId"`
			} `json:"datapoint"`
			Distance float64 `json:"distance"`
		} `json:"neighbors"`
	} `json:"nearestNeighbors"`
}

// Datapoint is a vector stored in an index
type Datapoint struct {
	DatapointID   string    `json:"datapoint_id"`
	FeatureVector []float32 `json:"feature_vector"`
}

type upsertDatapointsRequest struct {
	Datapoints []Datapoint `json:"datapoints"`
}

// RankRecord is a candidate passed to, and returned from, the ranking API
type RankRecord struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// RankRequest re-orders records by relevance to Query
type RankRequest struct {
	Location      string       `json:"-"`
	RankingConfig string       `json:"-"`
	Model         string       `json:"model,omitempty"`
	Query         string       `json:"query"`
	Records       []RankRecord `json:"records"`
	TopN          int          `json:"topN,omitempty"`
}

// RankResponse holds the ranked records, most relevant first
type RankResponse struct {
	Records []RankRecord `json:"records"`
}
