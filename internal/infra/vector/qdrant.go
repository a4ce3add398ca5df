package vector

import (
	"context"
	"fmt"

	"failboard/config"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type QdrantService struct {
	client *qdrant.Client
	col    string
	size   uint64
}

func NewQdrantService(cfg *config.Config) (*QdrantService, error) {
	qc := &qdrant.Config{
		Host: cfg.QdrantHost,
		Port: cfg.QdrantPort,
	}
	if cfg.QdrantAPIKey != "" {
		qc.APIKey = cfg.QdrantAPIKey
	}
	if !qc.UseTLS {
		qc.GrpcOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
	}

	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	svc := &QdrantService{client: client, col: cfg.QdrantCollection, size: cfg.QdrantVectorSize}
	svc.ensureCollection()
	return svc, nil
}

func (s *QdrantService) ensureCollection() {
	ctx := context.Background()
	exists, err := s.client.CollectionExists(ctx, s.col)
	if err != nil {
		zap.L().Error("Check qdrant collection failed", zap.Error(err))
		return
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.col,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.size,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			zap.L().Error("Create collection failed", zap.Error(err))
		}
	}
}

// Upsert stores the embedding of a story under its UUID.
func (s *QdrantService) Upsert(ctx context.Context, storyID string, vector []float32, category string) error {
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.col,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(storyID),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]any{"category": category}),
		}},
	})
	return err
}

func (s *QdrantService) Delete(ctx context.Context, storyID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.col,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(storyID)),
	})
	return err
}

// Search returns the ids of the nearest stories, excluding excludeID.
func (s *QdrantService) Search(ctx context.Context, vector []float32, limit uint64, excludeID string) ([]string, error) {
	var filter *qdrant.Filter
	if excludeID != "" {
		filter = &qdrant.Filter{
			MustNot: []*qdrant.Condition{qdrant.NewHasID(qdrant.NewIDUUID(excludeID))},
		}
	}

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.col,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filter,
		Limit:          &limit,
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, point := range res {
		if point.Id == nil {
			continue
		}
		if id, ok := point.Id.PointIdOptions.(*qdrant.PointId_Uuid); ok {
			ids = append(ids, id.Uuid)
		}
	}
	return ids, nil
}

func (s *QdrantService) Close() error {
	return s.client.Close()
}
