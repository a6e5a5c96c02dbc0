// Package vectorindex wraps Qdrant as the long-tier vector store for both
// ingested topics and long-term memory events. Grounded on the teacher's
// internal/persistence/databases/qdrant_vector.go, extended with explicit
// dimension-mismatch detection since the teacher's ensureCollection only
// creates a collection if one is absent and never compares dimensions.
package vectorindex

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"docmind/internal/apperr"
)

// payloadIDField stores the caller's original (non-UUID) ID alongside the
// Qdrant-required UUID point ID.
const payloadIDField = "_original_id"

// Writer is the vector-store collaborator used by the ingest orchestrator
// (topic upserts) and the long-term memory tier (event upserts).
type Writer struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// Result is a single similarity search hit.
type Result struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// New connects to Qdrant at dsn ("host:port", optionally
// "host:port?api_key=...") and ensures collection exists with the given
// dimension/metric, recreating it only when recreate is true.
func New(ctx context.Context, dsn, collection string, dimension int, metric string, recreate bool) (*Writer, error) {
	host, port, apiKey, useTLS, err := parseDSN(dsn)
	if err != nil {
		return nil, apperr.New(apperr.Configuration, "invalid vector DSN", err)
	}
	cfg := &qdrant.Config{Host: host, Port: port, APIKey: apiKey, UseTLS: useTLS}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, apperr.New(apperr.Configuration, "connect to qdrant", err)
	}
	w := &Writer{client: client, collection: collection, dimension: dimension, metric: metric}
	if err := w.ensureCollection(ctx, recreate); err != nil {
		return nil, err
	}
	return w, nil
}

func parseDSN(dsn string) (host string, port int, apiKey string, useTLS bool, err error) {
	raw := dsn
	if !strings.Contains(raw, "://") {
		raw = "qdrant://" + raw
	}
	u, perr := url.Parse(raw)
	if perr != nil {
		return "", 0, "", false, perr
	}
	host = u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		port = 6334
	} else {
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, "", false, err
		}
	}
	apiKey = u.Query().Get("api_key")
	useTLS = u.Query().Get("tls") == "true"
	return host, port, apiKey, useTLS, nil
}

func distanceFor(metric string) qdrant.Distance {
	switch strings.ToLower(metric) {
	case "l2", "euclidean":
		return qdrant.Distance_Euclid
	case "ip", "dot":
		return qdrant.Distance_Dot
	case "manhattan":
		return qdrant.Distance_Manhattan
	default:
		return qdrant.Distance_Cosine
	}
}

// ensureCollection creates the collection if absent. If present but with a
// different vector dimension, it refuses to proceed (DestructiveGuard)
// unless recreate is true, in which case it drops and recreates the
// collection. This is the behavior the spec calls the "destructive guard"
// (§7) on top of the teacher's create-if-absent-only pattern.
func (w *Writer) ensureCollection(ctx context.Context, recreate bool) error {
	exists, err := w.client.CollectionExists(ctx, w.collection)
	if err != nil {
		return apperr.New(apperr.Retriable, "check collection existence", err)
	}
	if exists {
		info, err := w.client.GetCollectionInfo(ctx, w.collection)
		if err != nil {
			return apperr.New(apperr.Retriable, "get collection info", err)
		}
		existingDim := extractVectorSize(info)
		if existingDim != 0 && existingDim != uint64(w.dimension) {
			if !recreate {
				return apperr.New(apperr.DestructiveGuard,
					fmt.Sprintf("collection %q has dimension %d, configured dimension is %d; pass --recreate to drop and rebuild it", w.collection, existingDim, w.dimension), nil)
			}
			if err := w.client.DeleteCollection(ctx, w.collection); err != nil {
				return apperr.New(apperr.Retriable, "delete collection for recreate", err)
			}
			exists = false
		}
	}
	if exists {
		return nil
	}
	return w.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: w.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(w.dimension),
			Distance: distanceFor(w.metric),
		}),
	})
}

func extractVectorSize(info *qdrant.CollectionInfo) uint64 {
	if info == nil || info.Config == nil || info.Config.Params == nil {
		return 0
	}
	vc := info.Config.Params.VectorsConfig
	if vc == nil {
		return 0
	}
	if p := vc.GetParams(); p != nil {
		return p.GetSize()
	}
	return 0
}

// pointID derives a stable Qdrant point UUID from an arbitrary external ID,
// the same sha1-derivation trick as the teacher's Upsert.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// Upsert writes a single vector with its payload metadata, keyed by an
// arbitrary external ID (the original topic or event ID, preserved in
// payload under "_original_id").
func (w *Writer) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload[payloadIDField] = id

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(id)),
		Vectors: qdrant.NewVectorsDense(vector),
		Payload: qdrant.NewValueMap(payload),
	}
	_, err := w.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: w.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return apperr.New(apperr.Retriable, "qdrant upsert", err)
	}
	return nil
}

// UpsertBatch writes points in chunks of at most batchSize, matching the
// teacher's chunk-then-upsert pattern in index_vector.go.
func (w *Writer) UpsertBatch(ctx context.Context, ids []string, vectors [][]float32, metadatas []map[string]string, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	if len(ids) != len(vectors) || len(ids) != len(metadatas) {
		return apperr.New(apperr.InvalidInput, "ids/vectors/metadatas length mismatch", nil)
	}
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			payload := make(map[string]any, len(metadatas[i])+1)
			for k, v := range metadatas[i] {
				payload[k] = v
			}
			payload[payloadIDField] = ids[i]
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(ids[i])),
				Vectors: qdrant.NewVectorsDense(vectors[i]),
				Payload: qdrant.NewValueMap(payload),
			})
		}
		if _, err := w.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: w.collection, Points: points}); err != nil {
			return apperr.New(apperr.Retriable, "qdrant batch upsert", err)
		}
	}
	return nil
}

// Search runs a similarity query, optionally filtered by exact-match
// metadata fields.
func (w *Writer) Search(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	var qf *qdrant.Filter
	if len(filter) > 0 {
		conds := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			conds = append(conds, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: conds}
	}
	points, err := w.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: w.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperr.New(apperr.Retriable, "qdrant query", err)
	}
	out := make([]Result, 0, len(points))
	for _, p := range points {
		md := make(map[string]string, len(p.Payload))
		id := p.Id.GetUuid()
		for k, v := range p.Payload {
			if k == payloadIDField {
				id = v.GetStringValue()
				continue
			}
			md[k] = v.GetStringValue()
		}
		out = append(out, Result{ID: id, Score: p.Score, Metadata: md})
	}
	return out, nil
}

// Scroll lists points matching an optional metadata filter, paging through
// the collection via a Qdrant-issued point-ID cursor rather than loading
// everything at once. nextOffset is empty once the final page is reached;
// pass it back as offset to continue. Nothing in this module calls it; it
// enumerates a collection's full contents for callers that need them.
func (w *Writer) Scroll(ctx context.Context, filter map[string]string, limit uint32, offset string) (results []Result, nextOffset string, err error) {
	var qf *qdrant.Filter
	if len(filter) > 0 {
		conds := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			conds = append(conds, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: conds}
	}
	req := &qdrant.ScrollPoints{
		CollectionName: w.collection,
		Filter:         qf,
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if offset != "" {
		req.Offset = qdrant.NewIDUUID(offset)
	}
	points, err := w.client.Scroll(ctx, req)
	if err != nil {
		return nil, "", apperr.New(apperr.Retriable, "qdrant scroll", err)
	}
	out := make([]Result, 0, len(points))
	for _, p := range points {
		md := make(map[string]string, len(p.Payload))
		id := p.Id.GetUuid()
		for k, v := range p.Payload {
			if k == payloadIDField {
				id = v.GetStringValue()
				continue
			}
			md[k] = v.GetStringValue()
		}
		out = append(out, Result{ID: id, Metadata: md})
	}
	if limit > 0 && uint32(len(out)) == limit {
		nextOffset = points[len(points)-1].Id.GetUuid()
	}
	return out, nextOffset, nil
}

// CreateSnapshot triggers a Qdrant-managed snapshot of the collection,
// returning its name for later recovery. Used for cross-host migration
// (§6): an operator moves the named snapshot file to the destination
// deployment's Qdrant storage and calls RestoreSnapshot there.
func (w *Writer) CreateSnapshot(ctx context.Context) (string, error) {
	snap, err := w.client.CreateSnapshot(ctx, w.collection)
	if err != nil {
		return "", apperr.New(apperr.Retriable, "qdrant create snapshot", err)
	}
	return snap.GetName(), nil
}

// RestoreSnapshot recovers the collection from a snapshot at location (a
// file:// or http(s):// URL Qdrant itself fetches from), recreating the
// collection if needed.
func (w *Writer) RestoreSnapshot(ctx context.Context, location string) error {
	if err := w.client.RecoverSnapshot(ctx, &qdrant.RecoverSnapshotRequest{
		CollectionName: w.collection,
		SnapshotLocation: location,
	}); err != nil {
		return apperr.New(apperr.Retriable, "qdrant restore snapshot", err)
	}
	return nil
}

// Dimension reports the configured vector dimension.
func (w *Writer) Dimension() int { return w.dimension }

// Close releases the underlying Qdrant connection.
func (w *Writer) Close() error { return w.client.Close() }

// ContentHash derives a stable sha1 hex digest, used by callers that need a
// deterministic key independent of point-ID derivation.
func ContentHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}
