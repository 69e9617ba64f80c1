// Qdrant implements Store by wrapping github.com/qdrant/go-client,
// adapted from manifold's internal/persistence/databases.qdrantVector:
// one collection per workspace, deterministic UUID point ids (Qdrant
// only accepts UUIDs or positive integers), with the original string id
// carried in the payload.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// payloadIDField carries the original chunk id, since Qdrant rejects
// arbitrary string point ids.
const payloadIDField = "_original_id"

type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// OpenQdrant connects to dsn, a URL with a scheme
// (http://host:port or https://host:port, optionally ?api_key=...);
// host defaults to localhost and port to 6334 when absent, and https
// enables TLS. When dimension > 0 it ensures collection exists, creating
// it with cosine distance if absent; with dimension 0 that step is left
// to the first Add, which takes the dimension from its vectors.
func OpenQdrant(ctx context.Context, dsn, collection string, dimension int) (*Qdrant, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	q := &Qdrant{client: client, collection: collection, dimension: dimension}
	if dimension > 0 {
		if err := q.ensureCollection(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("ensure collection: %w", err)
		}
	}
	return q, nil
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (q *Qdrant) Ready() bool {
	exists, err := q.client.CollectionExists(context.Background(), q.collection)
	return err == nil && exists
}

func (q *Qdrant) Close() error { return q.client.Close() }

func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *Qdrant) Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if q.dimension == 0 {
		q.dimension = len(vectors[0])
		if err := q.ensureCollection(ctx); err != nil {
			return err
		}
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		uid := pointID(c.ID)
		payload := map[string]any{
			"source": c.Source,
			"page":   c.Page,
			"index":  c.Index,
			"text":   c.Text,
		}
		if uid != c.ID {
			payload[payloadIDField] = c.ID
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uid),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points:         points,
	})
	return err
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)

	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		c := Chunk{ID: hit.Id.GetUuid()}
		if hit.Payload != nil {
			if v, ok := hit.Payload["source"]; ok {
				c.Source = v.GetStringValue()
			}
			if v, ok := hit.Payload["page"]; ok {
				c.Page = int(v.GetIntegerValue())
			}
			if v, ok := hit.Payload["index"]; ok {
				c.Index = int(v.GetIntegerValue())
			}
			if v, ok := hit.Payload["text"]; ok {
				c.Text = v.GetStringValue()
			}
			if v, ok := hit.Payload[payloadIDField]; ok {
				c.ID = v.GetStringValue()
			}
		}
		results = append(results, Result{Chunk: c, Score: float64(hit.Score)})
	}
	return results, nil
}
